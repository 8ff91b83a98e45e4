// handlers/vote.go
package handlers

import (
	"dare-engine/middleware"
	"dare-engine/models"
	"dare-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVoteRoutes(app *fiber.App, voteService *services.VoteService) {
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Post("/dares/:id/votes", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Direction models.VoteDirection `json:"direction"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := voteService.CastVote(c.Params("id"), userID, req.Direction)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	securedGroup.Get("/dares/:id/votes", func(c *fiber.Ctx) error {
		approves, rejects, err := voteService.Tally(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"approve_count": approves,
			"reject_count":  rejects,
		})
	})

	securedGroup.Get("/voters/me", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		account, err := voteService.GetVoterAccount(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"voter_id":       account.VoterID,
			"total_points":   account.TotalPoints,
			"current_streak": account.CurrentStreak,
			"best_streak":    account.BestStreak,
			"total_votes":    account.TotalVotes,
			"correct_votes":  account.CorrectVotes,
			"accuracy":       account.Accuracy(),
			"last_voted_at":  account.LastVotedAt,
		})
	})
}
