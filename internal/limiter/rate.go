package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Subject hands out a token bucket per subject id. Idle buckets are dropped
// after ttl so the map does not grow with every subject ever seen.
type Subject struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewSubject allows perMinute events per subject with the given burst.
func NewSubject(perMinute, burst int, ttl time.Duration) *Subject {
	if burst <= 0 {
		burst = 1
	}
	return &Subject{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
}

// Allow consumes one event for subject.
func (s *Subject) Allow(subject string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.ttl > 0 && now.Sub(s.sweep) > s.ttl {
		for k, b := range s.buckets {
			if now.Sub(b.seen) > s.ttl {
				delete(s.buckets, k)
			}
		}
		s.sweep = now
	}
	b, ok := s.buckets[subject]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[subject] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
