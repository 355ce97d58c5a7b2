package handlers

import (
	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/services"
)

const idempotencyHeader = "Idempotency-Key"

// SetupExchangeRoutes registers swap and withdrawal endpoints. Writes go
// through limit, the per-user rate limiter.
func SetupExchangeRoutes(secure Guard, swaps *services.SwapService, withdrawals *services.WithdrawalService, limit fiber.Handler) {
	swap := secure("/swap")

	swap.Get("/quote", func(c *fiber.Ctx) error {
		quote, err := swaps.Quote(c.Query("amount"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(quote)
	})

	swap.Post("", limit, func(c *fiber.Ctx) error {
		var body amountRequest
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c)
		}
		result, err := swaps.Swap(c.UserContext(), string(body.Amount), c.Get(idempotencyHeader))
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusCreated
		if result.Replayed {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(result)
	})

	secure("/withdrawals").Post("", limit, func(c *fiber.Ctx) error {
		var body amountRequest
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c)
		}
		result, err := withdrawals.Withdraw(c.UserContext(), string(body.Amount), c.Get(idempotencyHeader))
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusCreated
		if result.Replayed {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(result)
	})
}
