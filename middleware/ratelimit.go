package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"bonkers-airdrop/store"
)

type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles ledger writes per signed-in user, falling back to
// the client IP.
type RateLimiter struct {
	limit    RateLimit
	idleTTL  time.Duration
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	if limit.RequestsPerMinute <= 0 {
		limit.RequestsPerMinute = 60
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		idleTTL:  10 * time.Minute,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

func (r *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.IP()
		if session, ok := store.SessionFrom(c.UserContext()); ok {
			id = session.Email
		}
		if !r.allow(id) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please slow down",
				"code":  "rate_limited",
			})
		}
		return c.Next()
	}
}

func (r *RateLimiter) allow(id string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerMinute/60.0), r.limit.Burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep drops visitors idle longer than the TTL. The scheduler calls it
// periodically.
func (r *RateLimiter) Sweep() int {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.idleTTL {
			delete(r.visitors, id)
			removed++
		}
	}
	return removed
}
