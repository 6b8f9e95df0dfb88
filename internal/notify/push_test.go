package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMulticast fails any batch starting with a token in failFirst and records the
// rest.
type fakeMulticast struct {
	mu        sync.Mutex
	failFirst map[string]bool
	sent      []string
}

func (f *fakeMulticast) SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failFirst[m.Tokens[0]] {
		return nil, errors.New("service unavailable")
	}

	f.mu.Lock()
	f.sent = append(f.sent, m.Tokens...)
	f.mu.Unlock()

	resp := &messaging.BatchResponse{SuccessCount: len(m.Tokens)}
	for range m.Tokens {
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true})
	}
	return resp, nil
}

func tokensN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("tok-%d", i)
	}
	return out
}

func TestFCMPusher_FailedBatchDoesNotStopOthers(t *testing.T) {
	log, _ := test.NewNullLogger()
	tokens := tokensN(3*MaxBatch + 10)
	fake := &fakeMulticast{failFirst: map[string]bool{tokens[0]: true}}
	p := &FCMPusher{client: fake, log: log}

	invalid, err := p.Push(context.Background(), tokens, Message{Title: "Exam timetable"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending batch of 500")
	assert.Empty(t, invalid)
	assert.Len(t, fake.sent, 2*MaxBatch+10)
	assert.NotContains(t, fake.sent, tokens[0])
	assert.Contains(t, fake.sent, tokens[len(tokens)-1])
}

func TestFCMPusher_AllBatchesFailing(t *testing.T) {
	log, _ := test.NewNullLogger()
	tokens := tokensN(MaxBatch + 1)
	fake := &fakeMulticast{failFirst: map[string]bool{tokens[0]: true, tokens[MaxBatch]: true}}
	p := &FCMPusher{client: fake, log: log}

	_, err := p.Push(context.Background(), tokens, Message{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending batch of 500")
	assert.Contains(t, err.Error(), "sending batch of 1")
	assert.Empty(t, fake.sent)
}
