package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"bonkers-airdrop/services"
)

const (
	streamTick     = time.Second
	streamLifetime = 30 * time.Minute
)

// claimStream pushes a countdown event every tick until the user can claim.
// The user is read once up front; ticks only recompute from that snapshot.
func claimStream(accounts *services.AccountService, tick time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, _, err := accounts.ClaimStatus(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		snapshot := *user

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		done := c.Context().Done()
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(tick)
			defer ticker.Stop()
			deadline := time.NewTimer(streamLifetime)
			defer deadline.Stop()

			for {
				status := accounts.StatusFor(&snapshot, accounts.Now().UTC())
				payload, _ := json.Marshal(status)
				fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", payload)
				if status.CanClaim {
					fmt.Fprintf(w, "event: ready\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// client went away
					return
				}
				if status.CanClaim {
					return
				}

				select {
				case <-ticker.C:
				case <-deadline.C:
					log.Printf("⏱️ [CLAIM_STREAM] closing stream for %s after %s", snapshot.Email, streamLifetime)
					return
				case <-done:
					return
				}
			}
		})
		return nil
	}
}
