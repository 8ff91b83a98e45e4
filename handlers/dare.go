// handlers/dare.go
package handlers

import (
	"strconv"
	"time"

	"dare-engine/middleware"
	"dare-engine/services"
	"dare-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupDareRoutes(app *fiber.App, dareService *services.DareService, settlementService *services.SettlementService) {
	// Public reads — no user context needed, still behind gateway token.
	app.Get("/dares/review-queue", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		dares, err := dareService.ListReviewQueue(limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"dares": dares, "count": len(dares)})
	})

	app.Get("/dares/:publicID", func(c *fiber.Ctx) error {
		dare, err := dareService.GetDare(c.Params("publicID"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(dare)
	})

	// Secured routes — require user context from gateway.
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Post("/dares", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Title        string     `json:"title"`
			Description  string     `json:"description"`
			Stake        float64    `json:"stake"`
			TargetHandle *string    `json:"target_handle"`
			ReferrerID   *string    `json:"referrer_id"`
			ExpiresAt    *time.Time `json:"expires_at"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		dare, err := dareService.CreateDare(services.CreateDareRequest{
			Title:        req.Title,
			Description:  req.Description,
			Stake:        req.Stake,
			CreatorID:    userID,
			TargetHandle: req.TargetHandle,
			ReferrerID:   req.ReferrerID,
			ExpiresAt:    req.ExpiresAt,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dare)
	})

	// Proof submission: either a proof_ref pointing at allowlisted storage,
	// or a multipart "proof_file" we upload to R2 ourselves.
	securedGroup.Post("/dares/:id/proof", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		dareID := c.Params("id")

		proofRef := c.FormValue("proof_ref")
		capturedAtRaw := c.FormValue("captured_at")

		if proofRef == "" {
			var req struct {
				ProofRef   string     `json:"proof_ref"`
				CapturedAt *time.Time `json:"captured_at"`
			}
			if err := c.BodyParser(&req); err == nil && req.ProofRef != "" {
				capturedAt := time.Now()
				if req.CapturedAt != nil {
					capturedAt = *req.CapturedAt
				}
				result, err := dareService.SubmitProof(dareID, userID, req.ProofRef, capturedAt)
				if err != nil {
					return respondError(c, err)
				}
				return c.JSON(result)
			}
		}

		if proofRef == "" {
			file, err := c.FormFile("proof_file")
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "proof_ref or proof_file is required",
				})
			}
			if file.Size > 500*1024*1024 { // 500MB
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proof file too large (max 500MB)"})
			}
			key := "proofs/" + dareID + "/" + uuid.NewString()
			proofRef, err = utils.UploadProofToR2(file, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to store proof artifact",
				})
			}
		}

		capturedAt := time.Now()
		if capturedAtRaw != "" {
			if t, err := time.Parse(time.RFC3339, capturedAtRaw); err == nil {
				capturedAt = t
			}
		}

		result, err := dareService.SubmitProof(dareID, userID, proofRef, capturedAt)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	securedGroup.Post("/dares/:id/steal", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Amount float64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := settlementService.Steal(c.Params("id"), userID, req.Amount)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	// Admin: re-run settlement on a VERIFIED dare (idempotent no-op when done).
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireOperator())

	adminGroup.Post("/dares/:id/settle", func(c *fiber.Ctx) error {
		split, err := settlementService.Settle(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(split)
	})
}
