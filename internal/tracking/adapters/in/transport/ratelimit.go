package transport

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-user token bucket for write endpoints. It must run after
// JWTMiddleware; anonymous requests share one bucket.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	users map[string]*userLimiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 4
	}
	return &RateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
		users: make(map[string]*userLimiter),
	}
}

func (rl *RateLimiter) Allow(userID string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.users[userID] = u
	}
	u.lastSeen = now

	// opportunistic cleanup keeps the map bounded by active users
	if len(rl.users) > 1024 {
		for id, other := range rl.users {
			if now.Sub(other.lastSeen) > limiterIdleTTL {
				delete(rl.users, id)
			}
		}
	}
	return u.lim.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := GetUserIDFromContext(r.Context())
		if !rl.Allow(userID) {
			w.Header().Set("Retry-After", strconv.Itoa(int(max(1, 1/float64(rl.rps)))))
			respondError(w, http.StatusTooManyRequests, "too many location updates")
			return
		}
		next.ServeHTTP(w, r)
	})
}
