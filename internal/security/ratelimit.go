package security

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitMessage is returned with every 429 produced by the limiter.
const RateLimitMessage = "Too many requests from this IP, please try again after 5 minutes."

const (
	localCleanupInterval = 5 * time.Minute
	localEntryTTL        = 10 * time.Minute
)

// RateLimiter is a per-IP sliding window shared by every endpoint it wraps. Counts live
// in a redis sorted set so all replicas agree; when redis is absent or failing each
// process falls back to its own token buckets.
type RateLimiter struct {
	redis  *redis.Client
	max    int
	window time.Duration
	log    logrus.FieldLogger

	now    func() time.Time
	member func() string

	local *localLimiters
}

func NewRateLimiter(rdb *redis.Client, max int, window time.Duration, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{
		redis:  rdb,
		max:    max,
		window: window,
		log:    log,
		now:    time.Now,
		member: uuid.NewString,
		local:  newLocalLimiters(max, window),
	}
}

// Allow records a request from ip and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, ip string) bool {
	if l.redis == nil {
		return l.local.allow(ip)
	}

	allowed, err := l.allowRedis(ctx, ip)
	if err != nil {
		l.log.WithError(err).WithField("ip", ip).Warn("Rate limit store unavailable, using local limiter")
		return l.local.allow(ip)
	}
	return allowed
}

func (l *RateLimiter) allowRedis(ctx context.Context, ip string) (bool, error) {
	key := "ratelimit:" + ip
	now := l.now().UnixMilli()
	cutoff := now - l.window.Milliseconds()

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now), Member: l.member()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return card.Val() <= int64(l.max), nil
}

// Middleware rejects requests over the limit with 429 before they reach next.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !l.Allow(r.Context(), ip) {
			l.log.WithFields(logrus.Fields{"ip": ip, "path": r.URL.Path}).Warn("Rate limit exceeded")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": RateLimitMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are never read
// here; TrustedProxies.Middleware rewrites RemoteAddr for requests from known proxies.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiters struct {
	mu          sync.Mutex
	entries     map[string]*localEntry
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newLocalLimiters(max int, window time.Duration) *localLimiters {
	return &localLimiters{
		entries:     make(map[string]*localEntry, 64),
		limit:       rate.Every(window / time.Duration(max)),
		burst:       max,
		lastCleanup: time.Now(),
	}
}

func (l *localLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastCleanup) > localCleanupInterval {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, key)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
