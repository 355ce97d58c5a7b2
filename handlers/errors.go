package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/services"
	"bonkers-airdrop/store"
)

const (
	msgTryAgain = "Something went wrong. Please try again."
	msgConflict = "Your balance changed while we were processing, please retry"
)

var conflictCodes = map[economy.Code]bool{
	economy.CodeClaimTooEarly:          true,
	economy.CodeTaskAlreadyRewarded:    true,
	economy.CodeTaskRejected:           true,
	economy.CodeTaskNotReviewable:      true,
	economy.CodeAlreadyReferred:        true,
	economy.CodeReferralNotConfirmable: true,
}

// respondError maps a service error to a status and a short message.
// Business-rule rejections keep their own message; infrastructure failures
// share one generic message.
func respondError(c *fiber.Ctx, err error) error {
	var (
		early *economy.ClaimTooEarlyError
		rule  *economy.RuleError
	)
	switch {
	case errors.As(err, &early):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":             early.Error(),
			"code":              economy.CodeClaimTooEarly,
			"next_claim_at":     early.NextClaimAt,
			"remaining_seconds": int64(early.Remaining.Seconds()),
		})
	case errors.As(err, &rule):
		status := fiber.StatusBadRequest
		if conflictCodes[rule.Code] {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": rule.Error(), "code": rule.Code})
	case errors.Is(err, store.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Please sign in to continue", "code": "unauthenticated"})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found", "code": "not_found"})
	case errors.Is(err, store.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msgConflict, "code": "concurrent_modification"})
	case errors.Is(err, services.ErrIdempotencyKeyReused):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Idempotency-Key was already used for a different request", "code": "idempotency_key_reused"})
	case errors.Is(err, store.ErrInvalidQuery), errors.Is(err, store.ErrFieldNotWritable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request", "code": "invalid_request"})
	case errors.Is(err, store.ErrUnavailable):
		log.Printf("❌ [%s %s] store unavailable: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgTryAgain, "code": "unavailable"})
	}
	log.Printf("❌ [%s %s] unexpected error: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgTryAgain, "code": "internal"})
}

// ErrorHandler renders errors that escape a handler, including fiber's own.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return respondError(c, err)
}
