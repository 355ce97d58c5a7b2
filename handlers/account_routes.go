package handlers

import (
	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/services"
)

func SetupAccountRoutes(secure Guard, accounts *services.AccountService, limit fiber.Handler) {
	me := secure("/me")
	wallet := secure("/wallet")
	claim := secure("/claim")
	history := secure("/transactions")

	me.Get("", func(c *fiber.Ctx) error {
		overview, err := accounts.Overview(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(overview)
	})

	me.Patch("", func(c *fiber.Ctx) error {
		var body struct {
			FullName string `json:"full_name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c)
		}
		user, err := accounts.UpdateProfile(c.UserContext(), body.FullName)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user": user})
	})

	wallet.Post("/connect", func(c *fiber.Ctx) error {
		var body struct {
			Address string `json:"wallet_address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c)
		}
		user, err := accounts.ConnectWallet(c.UserContext(), body.Address)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user": user})
	})

	wallet.Post("/disconnect", func(c *fiber.Ctx) error {
		user, err := accounts.DisconnectWallet(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user": user})
	})

	claim.Get("", func(c *fiber.Ctx) error {
		_, status, err := accounts.ClaimStatus(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(status)
	})

	claim.Post("", limit, func(c *fiber.Ctx) error {
		result, err := accounts.Claim(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	claim.Get("/stream", claimStream(accounts, streamTick))

	history.Get("", func(c *fiber.Ctx) error {
		txs, err := accounts.Transactions(c.UserContext(), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"transactions": txs, "count": len(txs)})
	})
}
