// Package middleware holds gRPC interceptors shared by the server.
package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var log = logging.MustGetLogger("middleware")

// idleTTL is how long an unused key keeps its bucket.
const idleTTL = 10 * time.Minute

// LimiterStore keeps one token bucket per key and drops idle ones.
type LimiterStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	stopCh  chan struct{}
	stop    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore allows limitPerMinute events per key with the given burst.
// Idle keys are swept every cleanupInterval.
func NewLimiterStore(limitPerMinute int, burst int, cleanupInterval time.Duration) *LimiterStore {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	s := &LimiterStore{
		limit:   rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:   burst,
		buckets: map[string]*bucket{},
		stopCh:  make(chan struct{}),
	}
	go s.sweep(cleanupInterval)
	return s
}

func (s *LimiterStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.evictIdle(now.Add(-idleTTL))
		case <-s.stopCh:
			return
		}
	}
}

func (s *LimiterStore) evictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
			n++
		}
	}
	return n
}

// Stop ends the sweeper. Safe to call twice.
func (s *LimiterStore) Stop() {
	s.stop.Do(func() { close(s.stopCh) })
}

// Allow reports whether one more event for key fits the budget.
func (s *LimiterStore) Allow(key string) bool {
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = time.Now()
	s.mu.Unlock()
	return b.limiter.Allow()
}

// Len returns the number of tracked keys.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// KeyFunc picks the limiter key for a call. Returning "" falls through to the
// default (request email, then peer address).
type KeyFunc func(ctx context.Context, req any) string

// RateLimitUnaryInterceptor limits the listed methods. Keys come from keyFn
// when it returns a value, otherwise from a GetEmail() on the request, and
// finally from the peer address.
func RateLimitUnaryInterceptor(store *LimiterStore, methods map[string]bool, keyFn KeyFunc) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !methods[info.FullMethod] {
			return handler(ctx, req)
		}

		key := limiterKey(ctx, req, keyFn)
		if !store.Allow(info.FullMethod + "|" + key) {
			log.Warningf("rate limit exceeded for %s (%s)", key, info.FullMethod)
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func limiterKey(ctx context.Context, req any, keyFn KeyFunc) string {
	if keyFn != nil {
		if k := keyFn(ctx, req); k != "" {
			return k
		}
	}
	type emailGetter interface{ GetEmail() string }
	if eg, ok := req.(emailGetter); ok {
		if e := eg.GetEmail(); e != "" {
			return "email:" + e
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "addr:" + p.Addr.String()
	}
	return "unknown"
}
