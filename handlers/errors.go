package handlers

import (
	"errors"
	"log"

	"dare-engine/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps the engine's error taxonomy onto HTTP. The specific
// reason always reaches the caller — appeals and UI messaging branch on it —
// except for unclassified errors, which are logged and surfaced generically.
func respondError(c *fiber.Ctx, err error) error {
	var rejection *services.RejectionError
	var validation *services.ValidationError
	var conflict *services.ConflictError
	var authz *services.AuthorizationError
	var notFound *services.NotFoundError

	switch {
	case errors.As(err, &rejection):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "content rejected",
			"reason": rejection.Reason,
		})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"check":  validation.Check,
			"reason": validation.Reason,
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "conflict",
			"reason": conflict.Reason,
		})
	case errors.As(err, &authz):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":  "forbidden",
			"reason": authz.Reason,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": notFound.Error(),
		})
	default:
		log.Printf("❌ Unclassified error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
