package broker

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// limiterStore lazily creates one rate.Limiter per user, keyed by
// user_id. A user's RateLimitRPS (from their ledger account) is honored
// once at creation; later changes to that field require a process
// restart to take effect, which is an acceptable simplification for a
// per-user limit that changes rarely.
type limiterStore struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	defaultRPS float64
}

func newLimiterStore(defaultRPS float64) *limiterStore {
	return &limiterStore{
		limiters:   make(map[string]*rate.Limiter),
		defaultRPS: defaultRPS,
	}
}

// allow reports whether userID may proceed now, creating its limiter on
// first use with rps (falling back to the store default, then to
// unlimited if both are non-positive).
func (s *limiterStore) allow(userID string, rps float64) bool {
	if rps <= 0 {
		rps = s.defaultRPS
	}
	if rps <= 0 {
		return true
	}

	s.mu.Lock()
	l, ok := s.limiters[userID]
	if !ok {
		burst := int(math.Ceil(rps))
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		s.limiters[userID] = l
	}
	s.mu.Unlock()

	return l.Allow()
}
