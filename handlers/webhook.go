// handlers/webhook.go
package handlers

import (
	"log"
	"os"
	"strings"

	"dare-engine/models"
	"dare-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWebhookRoutes wires the moderation-bot inbound channel. The bot is a
// thin surface: it authenticates an operator on its side, then calls the same
// appeal authority every other integration uses. This route always returns
// 200 — failing a webhook delivery only triggers upstream retry storms.
func SetupWebhookRoutes(app *fiber.App, appealService *services.AppealService) {
	botToken := os.Getenv("MODERATION_BOT_TOKEN")

	app.Post("/webhooks/moderation-bot", func(c *fiber.Ctx) error {
		if botToken == "" || c.Get("X-Bot-Token") != botToken {
			log.Printf("🚫 [BOT] rejected webhook call with bad token from %s", c.IP())
			// Still 200: acknowledge receipt, do nothing.
			return c.JSON(fiber.Map{"ok": false})
		}

		var req struct {
			Command    string `json:"command"` // approve_appeal, reject_appeal, force_verify, force_fail
			DareID     string `json:"dare_id"`
			OperatorID string `json:"operator_id"` // authenticated by the bot's own operator check
			Note       string `json:"note"`
		}
		if err := c.BodyParser(&req); err != nil {
			log.Printf("❌ [BOT] invalid webhook payload: %v", err)
			return c.JSON(fiber.Map{"ok": false})
		}

		var err error
		switch strings.ToLower(req.Command) {
		case "approve_appeal":
			_, err = appealService.ResolveAppeal(req.DareID, req.OperatorID, models.AppealStatusApproved)
		case "reject_appeal":
			_, err = appealService.ResolveAppeal(req.DareID, req.OperatorID, models.AppealStatusRejected)
		case "force_verify":
			err = appealService.ForceResolve(req.DareID, req.OperatorID, models.DareStatusVerified, req.Note)
		case "force_fail":
			err = appealService.ForceResolve(req.DareID, req.OperatorID, models.DareStatusFailed, req.Note)
		default:
			log.Printf("❌ [BOT] unknown command %q for dare %s", req.Command, req.DareID)
			return c.JSON(fiber.Map{"ok": false, "reason": "unknown command"})
		}

		if err != nil {
			// Internal failures are logged but still acknowledged.
			log.Printf("❌ [BOT] command %s on dare %s failed: %v", req.Command, req.DareID, err)
			return c.JSON(fiber.Map{"ok": false, "reason": err.Error()})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
}
