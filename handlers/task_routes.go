package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/services"
	"bonkers-airdrop/store"
)

func SetupTaskRoutes(secure Guard, admin fiber.Router, tasks *services.TaskService, limit fiber.Handler) {
	board := secure("/tasks")

	board.Get("", func(c *fiber.Ctx) error {
		list, err := tasks.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	board.Post("/:type/start", limit, func(c *fiber.Ctx) error {
		var body struct {
			TaskData map[string]string `json:"task_data"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c)
			}
		}
		task, created, err := tasks.Start(c.UserContext(), c.Params("type"), body.TaskData)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{"task": task, "created": created})
	})

	board.Post("/:type/verify", limit, func(c *fiber.Ctx) error {
		result, err := tasks.Verify(c.UserContext(), c.Params("type"))
		if err != nil {
			return respondError(c, err)
		}
		if result.AwaitingReview {
			return c.Status(fiber.StatusAccepted).JSON(result)
		}
		return c.JSON(result)
	})

	admin.Get("/tasks/pending", func(c *fiber.Ctx) error {
		pending, err := tasks.PendingReviews(c.UserContext(), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"tasks": pending, "count": len(pending)})
	})

	admin.Post("/tasks/:id/review", func(c *fiber.Ctx) error {
		var body struct {
			Approve *bool `json:"approve"`
		}
		if err := c.BodyParser(&body); err != nil || body.Approve == nil {
			return badRequest(c)
		}
		session, _ := store.SessionFrom(c.UserContext())
		result, err := tasks.Review(c.UserContext(), c.Params("id"), *body.Approve, session.Email)
		if err != nil {
			log.Printf("❌ [ADMIN] review of task %s failed: %v", c.Params("id"), err)
			return respondError(c, err)
		}
		return c.JSON(result)
	})
}
