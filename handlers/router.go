package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"bonkers-airdrop/middleware"
	"bonkers-airdrop/services"
)

type Deps struct {
	DB           Pinger
	Registry     *prometheus.Registry
	GatewayToken string
	JWTSecret    []byte
	Limiter      *middleware.RateLimiter

	Accounts    *services.AccountService
	Swaps       *services.SwapService
	Withdrawals *services.WithdrawalService
	Tasks       *services.TaskService
	Referrals   *services.ReferralService
	Leaderboard *services.LeaderboardService
}

// Guard returns a router whose routes under prefix require a session.
// Session checks are mounted per prefix so unknown paths still answer 404.
type Guard func(prefix string, extra ...fiber.Handler) fiber.Router

// Register mounts every route on app. The gateway forwards paths such as
// /api/v1/airdrop/s/me to /me.
func Register(app *fiber.App, d Deps) {
	SetupSystemRoutes(app, d.DB, d.Registry)

	auth := []fiber.Handler{
		middleware.GatewayAuthMiddleware(d.GatewayToken),
		middleware.UserContextMiddleware(d.JWTSecret),
	}
	secure := func(prefix string, extra ...fiber.Handler) fiber.Router {
		handlers := append(append([]fiber.Handler{}, auth...), extra...)
		return app.Group(prefix, handlers...)
	}
	admin := secure("/admin", middleware.RequireRole(middleware.RoleAdmin))

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Handler()
	}

	SetupAccountRoutes(secure, d.Accounts, limit)
	SetupExchangeRoutes(secure, d.Swaps, d.Withdrawals, limit)
	SetupTaskRoutes(secure, admin, d.Tasks, limit)
	SetupReferralRoutes(secure, admin, d.Referrals, d.Leaderboard)
}
