package signalserver

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterStore keeps one limiter per session key.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterStore(config RateLimitConfigOptions) *limiterStore {
	if config.CandidatesPerSecond <= 0 {
		return nil
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterStore{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(config.CandidatesPerSecond),
		burst:    burst,
	}
}

// allow reports whether key may proceed. A nil store allows everything.
func (s *limiterStore) allow(key string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func (s *limiterStore) forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.limiters, key)
	s.mu.Unlock()
}
