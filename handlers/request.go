package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RawAmount accepts an amount sent either as a JSON number or a string and
// keeps the literal text for the economy parser.
type RawAmount string

func (a *RawAmount) UnmarshalJSON(b []byte) error {
	text := strings.TrimSpace(string(b))
	switch {
	case text == "null":
		*a = ""
	case strings.HasPrefix(text, `"`):
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
	default:
		*a = RawAmount(text)
	}
	return nil
}

type amountRequest struct {
	Amount RawAmount `json:"amount"`
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
		"code":  "invalid_request",
	})
}
