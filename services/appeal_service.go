package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"dare-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppealService is the single override authority: every surface that lets an
// operator bypass consensus (admin API, moderation bot webhook) calls in
// here, and every manual decision leaves an OverrideLog row.
type AppealService struct {
	DB         *gorm.DB
	Settlement *SettlementService
}

func NewAppealService(db *gorm.DB, settlement *SettlementService) *AppealService {
	return &AppealService{DB: db, Settlement: settlement}
}

// FileAppeal opens the one allowed appeal on a FAILED dare. Only the dare's
// creator may file, and only while no appeal exists.
func (s *AppealService) FileAppeal(dareID, creatorID, reason string) (*models.Appeal, error) {
	if reason == "" {
		return nil, &ValidationError{Check: "reason", Reason: "appeal reason is required"}
	}

	var appeal *models.Appeal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var dare models.Dare
		if err := tx.Where("id = ?", dareID).First(&dare).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "dare", ID: dareID}
			}
			return err
		}
		if dare.CreatorID != creatorID {
			return &AuthorizationError{Reason: "only the dare's creator may appeal"}
		}
		if dare.Status != models.DareStatusFailed {
			return &ConflictError{Reason: fmt.Sprintf("dare is %s, only FAILED dares can be appealed", dare.Status)}
		}
		if dare.AppealStatus != nil {
			return &ConflictError{Reason: "an appeal was already filed for this dare"}
		}

		// Conditional marker update keeps the one-appeal rule race-safe; the
		// unique index on appeals.dare_id is the backstop.
		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ? AND appeal_status IS NULL", dareID, models.DareStatusFailed).
			Update("appeal_status", models.AppealStatusPending)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "appeal filed concurrently"}
		}

		appeal = &models.Appeal{
			ID:        uuid.NewString(),
			DareID:    dareID,
			CreatorID: creatorID,
			Reason:    reason,
			Status:    models.AppealStatusPending,
		}
		return tx.Create(appeal).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📨 Appeal filed on dare %s by %s", dareID, creatorID)
	return appeal, nil
}

// ResolveAppeal records the operator's decision. APPROVED re-opens the dare
// into PENDING_REVIEW and bumps the review round so the failed round's votes
// stop counting toward quorum (they stay on record for audit, and rewards
// already granted are never clawed back). REJECTED leaves the dare FAILED
// permanently.
func (s *AppealService) ResolveAppeal(dareID, operatorID string, decision models.AppealStatus) (*models.Appeal, error) {
	if decision != models.AppealStatusApproved && decision != models.AppealStatusRejected {
		return nil, &ValidationError{Check: "decision", Reason: "decision must be APPROVED or REJECTED"}
	}

	var appeal models.Appeal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dare_id = ?", dareID).First(&appeal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "appeal", ID: dareID}
			}
			return err
		}
		if appeal.Status != models.AppealStatusPending {
			return &ConflictError{Reason: "appeal already resolved"}
		}

		now := time.Now()
		appeal.Status = decision
		appeal.ResolvedBy = &operatorID
		appeal.ResolvedAt = &now
		if err := tx.Save(&appeal).Error; err != nil {
			return err
		}

		if decision == models.AppealStatusApproved {
			res := tx.Model(&models.Dare{}).
				Where("id = ? AND status = ?", dareID, models.DareStatusFailed).
				Updates(map[string]interface{}{
					"status":        models.DareStatusPendingReview,
					"appeal_status": models.AppealStatusApproved,
					"review_round":  gorm.Expr("review_round + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &ConflictError{Reason: "dare is no longer FAILED"}
			}
			if err := logOverride(tx, dareID, operatorID, "appeal_approved",
				models.DareStatusFailed, models.DareStatusPendingReview, appeal.Reason); err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.Dare{}).
				Where("id = ?", dareID).
				Update("appeal_status", models.AppealStatusRejected).Error; err != nil {
				return err
			}
			if err := logOverride(tx, dareID, operatorID, "appeal_rejected",
				models.DareStatusFailed, models.DareStatusFailed, appeal.Reason); err != nil {
				return err
			}
		}

		return queueNotification(tx, dareID, "appeal_resolved", string(decision))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("⚖️ Appeal on dare %s resolved %s by operator %s", dareID, decision, operatorID)
	return &appeal, nil
}

// ForceResolve lets a trusted operator push a PENDING_REVIEW dare straight to
// a terminal state, bypassing consensus. Operator approval forces proof
// confidence to 1.0 — that is deliberate policy (human judgment outranks the
// scorer), logged as a manual override.
func (s *AppealService) ForceResolve(dareID, operatorID string, outcome models.DareStatus, note string) error {
	if outcome != models.DareStatusVerified && outcome != models.DareStatusFailed {
		return &ValidationError{Check: "outcome", Reason: "outcome must be VERIFIED or FAILED"}
	}

	cfg, err := s.Settlement.CurrentFeeConfig()
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var dare models.Dare
		if err := tx.Where("id = ?", dareID).First(&dare).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "dare", ID: dareID}
			}
			return err
		}
		if dare.Status != models.DareStatusPendingReview {
			return &ConflictError{Reason: fmt.Sprintf("dare is %s, only PENDING_REVIEW dares can be force-resolved", dare.Status)}
		}

		updates := map[string]interface{}{"status": outcome}
		if outcome == models.DareStatusVerified {
			updates["proof_confidence"] = 1.0
		}
		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ?", dareID, models.DareStatusPendingReview).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "dare transitioned concurrently"}
		}

		if err := logOverride(tx, dareID, operatorID, "forced_"+string(outcome),
			models.DareStatusPendingReview, outcome, note); err != nil {
			return err
		}

		if outcome == models.DareStatusVerified {
			var fresh models.Dare
			if err := tx.Where("id = ?", dareID).First(&fresh).Error; err != nil {
				return err
			}
			return s.Settlement.settleInTx(tx, &fresh, cfg)
		}
		return queueNotification(tx, dareID, "dare_failed", "manual override: "+note)
	})
	if err != nil {
		return err
	}

	log.Printf("⚖️ Dare %s force-resolved to %s by operator %s", dareID, outcome, operatorID)
	return nil
}

func logOverride(tx *gorm.DB, dareID, operatorID, action string, from, to models.DareStatus, note string) error {
	return tx.Create(&models.OverrideLog{
		ID:         uuid.NewString(),
		DareID:     dareID,
		OperatorID: operatorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	}).Error
}
