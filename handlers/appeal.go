// handlers/appeal.go
package handlers

import (
	"dare-engine/middleware"
	"dare-engine/models"
	"dare-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAppealRoutes(app *fiber.App, appealService *services.AppealService) {
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Post("/dares/:id/appeal", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		appeal, err := appealService.FileAppeal(c.Params("id"), userID, req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(appeal)
	})

	// Operator-only: appeal resolution and forced terminal decisions.
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireOperator())

	adminGroup.Post("/dares/:id/appeal/resolve", func(c *fiber.Ctx) error {
		operatorID := c.Locals("user_id").(string)

		var req struct {
			Decision models.AppealStatus `json:"decision"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		appeal, err := appealService.ResolveAppeal(c.Params("id"), operatorID, req.Decision)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(appeal)
	})

	adminGroup.Post("/dares/:id/override", func(c *fiber.Ctx) error {
		operatorID := c.Locals("user_id").(string)

		var req struct {
			Outcome models.DareStatus `json:"outcome"`
			Note    string            `json:"note"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		if err := appealService.ForceResolve(c.Params("id"), operatorID, req.Outcome, req.Note); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "dare resolved by operator override",
			"outcome": req.Outcome,
		})
	})
}
