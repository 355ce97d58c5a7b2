package handlers

import (
	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/services"
)

func SetupReferralRoutes(secure Guard, admin fiber.Router, referrals *services.ReferralService, leaderboard *services.LeaderboardService) {
	refs := secure("/referrals")

	refs.Post("/apply", func(c *fiber.Ctx) error {
		var body struct {
			Code string `json:"referral_code"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c)
		}
		referral, err := referrals.Apply(c.UserContext(), body.Code)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"referral": referral})
	})

	refs.Get("", func(c *fiber.Ctx) error {
		history, err := referrals.History(c.UserContext(), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"referrals": history, "count": len(history)})
	})

	secure("/leaderboard").Get("", func(c *fiber.Ctx) error {
		by, err := services.ParseLeaderboardBy(c.Query("by"))
		if err != nil {
			return respondError(c, err)
		}
		entries, err := leaderboard.Top(c.UserContext(), by, c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"by": by, "entries": entries})
	})

	admin.Post("/referrals/:id/confirm", func(c *fiber.Ctx) error {
		referral, err := referrals.Confirm(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"referral": referral})
	})

	admin.Post("/referrals/settle", func(c *fiber.Ctx) error {
		settled, err := referrals.SettleConfirmed(c.UserContext())
		if err != nil && settled == 0 {
			return respondError(c, err)
		}
		resp := fiber.Map{"settled": settled}
		if err != nil {
			resp["partial"] = true
		}
		return c.JSON(resp)
	})
}
