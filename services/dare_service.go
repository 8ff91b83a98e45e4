package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dare-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// legalTransitions drives the state machine: the only backward edge is
// FAILED → PENDING_REVIEW, and only the appeal authority takes it.
var legalTransitions = map[models.DareStatus][]models.DareStatus{
	models.DareStatusPending: {
		models.DareStatusAwaitingClaim,
		models.DareStatusPendingReview,
		models.DareStatusVerified,
		models.DareStatusFailed,
		models.DareStatusExpired,
	},
	models.DareStatusAwaitingClaim: {
		models.DareStatusPendingReview,
		models.DareStatusVerified,
		models.DareStatusFailed,
		models.DareStatusExpired,
	},
	models.DareStatusPendingReview: {
		models.DareStatusVerified,
		models.DareStatusFailed,
	},
	models.DareStatusFailed: {
		models.DareStatusPendingReview, // approved appeal only
	},
	models.DareStatusVerified: {},
	models.DareStatusExpired:  {},
}

// CanTransition reports whether from → to is a legal lifecycle edge.
func CanTransition(from, to models.DareStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type DareService struct {
	DB         *gorm.DB
	Validator  *ProofValidator
	Settlement *SettlementService
}

func NewDareService(db *gorm.DB, validator *ProofValidator, settlement *SettlementService) *DareService {
	return &DareService{DB: db, Validator: validator, Settlement: settlement}
}

// CreateDareRequest is the engine-level create input; transport parsing
// belongs to the handler.
type CreateDareRequest struct {
	Title        string
	Description  string
	Stake        float64
	CreatorID    string
	TargetHandle *string
	ReferrerID   *string
	ExpiresAt    *time.Time
}

// CreateDare runs the risk gate and persists the dare with the scorer's full
// output. Blocked content returns a RejectionError with the specific reason.
// Open dares (no target) that clear moderation publish straight into
// AWAITING_CLAIM.
func (s *DareService) CreateDare(req CreateDareRequest) (*models.Dare, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Check: "title", Reason: "title is required"}
	}
	if req.Stake <= 0 {
		return nil, &ValidationError{Check: "stake", Reason: "stake must be positive"}
	}
	if req.CreatorID == "" {
		return nil, &ValidationError{Check: "creator", Reason: "creator identity is required"}
	}

	assessment := ScoreDare(req.Title, req.Description, req.Stake)
	if !assessment.Allowed {
		return nil, &RejectionError{Reason: assessment.Reason}
	}

	dare := &models.Dare{
		ID:                uuid.NewString(),
		PublicID:          models.NewPublicID(req.Title),
		Title:             req.Title,
		Description:       req.Description,
		TargetHandle:      req.TargetHandle,
		CreatorID:         req.CreatorID,
		Bounty:            req.Stake,
		Currency:          "USD",
		StakerID:          req.CreatorID,
		ReferrerID:        req.ReferrerID,
		Status:            models.DareStatusPending,
		ExpiresAt:         req.ExpiresAt,
		ReviewRound:       1,
		RiskLevel:         assessment.RiskLevel,
		RiskConfidence:    assessment.Confidence,
		RiskReason:        assessment.Reason,
		MatchedPatterns:   strings.Join(assessment.MatchedPatterns, ","),
		Flagged:           assessment.Flagged,
		PendingModeration: assessment.Flagged,
	}

	// Open dares with clean content publish immediately; flagged ones wait on
	// the external moderation queue first.
	if req.TargetHandle == nil && !assessment.Flagged {
		dare.Status = models.DareStatusAwaitingClaim
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dare).Error; err != nil {
			return err
		}
		if assessment.Flagged {
			return queueNotification(tx, dare.ID, "dare_flagged", assessment.Reason)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📣 Dare created: %s (%s) stake=%.2f risk=%s flagged=%t",
		dare.PublicID, dare.ID, dare.Bounty, dare.RiskLevel, dare.Flagged)
	return dare, nil
}

// GetDare loads a dare by public id and applies lazy expiry: a PENDING or
// AWAITING_CLAIM dare past its expiry timestamp transitions to EXPIRED on
// read. The sweep worker is observability sugar; this is what makes expiry
// correct.
func (s *DareService) GetDare(publicID string) (*models.Dare, error) {
	var dare models.Dare
	if err := s.DB.Where("public_id = ?", publicID).First(&dare).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "dare", ID: publicID}
		}
		return nil, err
	}
	if err := s.expireIfDue(&dare); err != nil {
		return nil, err
	}
	return &dare, nil
}

// GetDareByID is the internal-id variant of GetDare, same lazy expiry.
func (s *DareService) GetDareByID(id string) (*models.Dare, error) {
	var dare models.Dare
	if err := s.DB.Where("id = ?", id).First(&dare).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "dare", ID: id}
		}
		return nil, err
	}
	if err := s.expireIfDue(&dare); err != nil {
		return nil, err
	}
	return &dare, nil
}

func (s *DareService) expireIfDue(dare *models.Dare) error {
	if dare.ExpiresAt == nil || time.Now().Before(*dare.ExpiresAt) {
		return nil
	}
	if dare.Status != models.DareStatusPending && dare.Status != models.DareStatusAwaitingClaim {
		return nil
	}
	if err := s.ExpireDare(dare.ID, dare.Status); err != nil {
		// Lost the race to another reader or a real transition — re-read.
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			return err
		}
	}
	return s.DB.Where("id = ?", dare.ID).First(dare).Error
}

// ExpireDare conditionally moves a dare into EXPIRED and queues the stake
// return. Idempotent across racing readers and the sweep worker: the CAS
// guarantees exactly one winner writes the instruction.
func (s *DareService) ExpireDare(dareID string, fromStatus models.DareStatus) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ?", dareID, fromStatus).
			Update("status", models.DareStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "dare already transitioned"}
		}

		var dare models.Dare
		if err := tx.Where("id = ?", dareID).First(&dare).Error; err != nil {
			return err
		}
		if err := queueInstruction(tx, &dare, models.InstructionStakeReturn, dare.StakerID, dare.Bounty,
			"stake returned: dare expired unproven"); err != nil {
			return err
		}
		return queueNotification(tx, dareID, "dare_expired", "")
	})
}

// ListReviewQueue returns dares currently awaiting crowd consensus.
func (s *DareService) ListReviewQueue(limit int) ([]models.Dare, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var dares []models.Dare
	err := s.DB.Where("status = ?", models.DareStatusPendingReview).
		Order("updated_at ASC").
		Limit(limit).
		Find(&dares).Error
	return dares, err
}

// SubmitProofResult is returned to callers of SubmitProof; Reason explains
// the routing decision, not just failures.
type SubmitProofResult struct {
	Status     models.DareStatus `json:"status"`
	Reason     string            `json:"reason"`
	Confidence float64           `json:"confidence"`
}

// SubmitProof validates a proof reference and routes the dare: small clean
// stakes auto-settle to VERIFIED, everything else enters the consensus queue.
// The ledger insert and the status transition commit in one transaction, and
// the transition itself is a conditional update — exactly one proof wins even
// under concurrent submissions.
func (s *DareService) SubmitProof(dareID, submitterID, proofRef string, capturedAt time.Time) (*SubmitProofResult, error) {
	dare, err := s.GetDareByID(dareID)
	if err != nil {
		return nil, err
	}

	fromStatus := dare.Status
	if fromStatus != models.DareStatusPending && fromStatus != models.DareStatusAwaitingClaim {
		return nil, &ConflictError{Reason: fmt.Sprintf("dare is %s and no longer accepts proof", fromStatus)}
	}
	if dare.PendingModeration {
		return nil, &ConflictError{Reason: "dare is awaiting moderation and cannot be claimed yet"}
	}

	if err := s.Validator.Validate(proofRef, capturedAt, time.Now()); err != nil {
		return nil, err
	}

	cfg, err := s.Settlement.CurrentFeeConfig()
	if err != nil {
		return nil, err
	}

	// Routing: auto-settle only when the money at stake is small and the risk
	// scorer was confident about the content. Confidence here is the scorer's,
	// never forced to 1.0 — only operator approval does that.
	autoSettle := dare.Bounty < cfg.ReviewThreshold && !dare.Flagged && dare.RiskConfidence >= 0.6
	toStatus := models.DareStatusPendingReview
	reason := "proof accepted; dare queued for community review"
	if autoSettle {
		toStatus = models.DareStatusVerified
		reason = "proof accepted; stake below review threshold, settled automatically"
	}

	normalized := NormalizeRef(proofRef)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// The unique index on normalized_ref backs up the validator's replay
		// check under concurrency: the second inserter fails here.
		entry := models.ProofLedgerEntry{
			ID:            uuid.NewString(),
			NormalizedRef: normalized,
			DareID:        dareID,
			SubmitterID:   submitterID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ValidationError{Check: "replay", Reason: "this proof was already used"}
			}
			return err
		}

		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ?", dareID, fromStatus).
			Updates(map[string]interface{}{
				"status":            toStatus,
				"proof_ref":         proofRef,
				"proof_captured_at": capturedAt,
				"proof_submitter":   submitterID,
				"proof_confidence":  dare.RiskConfidence,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "dare transitioned concurrently, re-read and retry"}
		}

		if autoSettle {
			var fresh models.Dare
			if err := tx.Where("id = ?", dareID).First(&fresh).Error; err != nil {
				return err
			}
			return s.Settlement.settleInTx(tx, &fresh, cfg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎬 Proof accepted for dare %s → %s (submitter=%s)", dareID, toStatus, submitterID)
	return &SubmitProofResult{Status: toStatus, Reason: reason, Confidence: dare.RiskConfidence}, nil
}
