// Package notify delivers push notifications and transactional email, and computes who
// should receive them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// MaxBatch is the provider's per-call token limit.
const MaxBatch = 500

const maxConcurrentBatches = 4

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher sends a message to tokens and returns the tokens the provider rejected as
// permanently invalid.
type Pusher interface {
	Push(ctx context.Context, tokens []string, msg Message) (invalid []string, err error)
}

// multicaster is the part of *messaging.Client the pusher uses.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type FCMPusher struct {
	client multicaster
	log    logrus.FieldLogger
}

func NewFCMPusher(ctx context.Context, credentialsPath string, log logrus.FieldLogger) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("initializing firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase messaging: %w", err)
	}
	return &FCMPusher{client: client, log: log}, nil
}

// Push sends every batch even when some of them fail. The returned error joins the
// per-batch failures; invalid tokens from the batches that went through are still
// reported.
func (p *FCMPusher) Push(ctx context.Context, tokens []string, msg Message) ([]string, error) {
	var (
		mu      sync.Mutex
		invalid []string
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentBatches)

	for _, batch := range Batches(tokens, MaxBatch) {
		g.Go(func() error {
			resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
				Tokens:       batch,
				Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
				Data:         msg.Data,
			})
			if err != nil {
				p.log.WithError(err).WithField("tokens", len(batch)).Warn("Push batch failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("sending batch of %d: %w", len(batch), err))
				mu.Unlock()
				return nil
			}

			p.log.WithFields(logrus.Fields{
				"success": resp.SuccessCount,
				"failure": resp.FailureCount,
			}).Info("Push batch sent")

			mu.Lock()
			defer mu.Unlock()
			for i, r := range resp.Responses {
				if r.Success || r.Error == nil {
					continue
				}
				if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
					invalid = append(invalid, batch[i])
				}
			}
			return nil
		})
	}

	g.Wait()
	return invalid, errors.Join(errs...)
}

// LogPusher stands in when no push credentials are configured.
type LogPusher struct {
	Log logrus.FieldLogger
}

func (p LogPusher) Push(_ context.Context, tokens []string, msg Message) ([]string, error) {
	p.Log.WithFields(logrus.Fields{"tokens": len(tokens), "title": msg.Title}).Info("Push disabled, notification dropped")
	return nil, nil
}

// Batches splits tokens into consecutive chunks of at most size.
func Batches(tokens []string, size int) [][]string {
	var out [][]string
	for len(tokens) > size {
		out = append(out, tokens[:size:size])
		tokens = tokens[size:]
	}
	if len(tokens) > 0 {
		out = append(out, tokens)
	}
	return out
}
