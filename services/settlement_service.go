package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"dare-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SettlementService struct {
	DB *gorm.DB
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{DB: db}
}

// EnsureFeeConfig seeds version 1 from defaults when the table is empty.
// Rates are never edited in place — changes get a new version row.
func (s *SettlementService) EnsureFeeConfig() (*models.FeeConfig, error) {
	var cfg models.FeeConfig
	err := s.DB.Order("version DESC").First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cfg = models.DefaultFeeConfig
	cfg.ID = uuid.NewString()
	cfg.EffectiveFrom = time.Now()
	if err := s.DB.Create(&cfg).Error; err != nil {
		return nil, err
	}
	log.Printf("💰 Seeded fee config v%d (creator=%.0f%% platform=%.0f%% referrer=%.0f%% stealFee=%.0f%%)",
		cfg.Version, cfg.CreatorPct*100, cfg.PlatformPct*100, cfg.ReferrerPct*100, cfg.StealFeePct*100)
	return &cfg, nil
}

// CurrentFeeConfig returns the latest versioned rates.
func (s *SettlementService) CurrentFeeConfig() (*models.FeeConfig, error) {
	var cfg models.FeeConfig
	if err := s.DB.Order("version DESC").First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.EnsureFeeConfig()
		}
		return nil, err
	}
	return &cfg, nil
}

// PayoutSplit is the computed settlement for a verified dare.
type PayoutSplit struct {
	CreatorShare  float64 `json:"creator_share"`
	PlatformShare float64 `json:"platform_share"`
	ReferrerShare float64 `json:"referrer_share"`
}

// ComputeSplit divides the stake per the fee config. Shares are rounded to
// the cent and the rounding remainder accrues to the platform so the splits
// always sum to exactly the stake.
func ComputeSplit(stake float64, hasReferrer bool, cfg *models.FeeConfig) PayoutSplit {
	creator := roundCents(stake * cfg.CreatorPct)
	referrer := 0.0
	if hasReferrer {
		referrer = roundCents(stake * cfg.ReferrerPct)
	}
	platform := roundCents(stake - creator - referrer)
	return PayoutSplit{CreatorShare: creator, PlatformShare: platform, ReferrerShare: referrer}
}

// Settle distributes a VERIFIED dare's stake. Exactly-once: an already
// settled dare is a no-op, never a re-payment.
func (s *SettlementService) Settle(dareID string) (*PayoutSplit, error) {
	cfg, err := s.CurrentFeeConfig()
	if err != nil {
		return nil, err
	}
	var split *PayoutSplit
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var dare models.Dare
		if err := tx.Where("id = ?", dareID).First(&dare).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "dare", ID: dareID}
			}
			return err
		}
		if dare.Status != models.DareStatusVerified {
			return &ConflictError{Reason: fmt.Sprintf("dare is %s, only VERIFIED dares settle", dare.Status)}
		}
		if err := s.settleInTx(tx, &dare, cfg); err != nil {
			return err
		}
		split = &PayoutSplit{
			CreatorShare:  dare.CreatorShare,
			PlatformShare: dare.PlatformShare,
			ReferrerShare: dare.ReferrerShare,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return split, nil
}

// settleInTx computes the payout split and queues escrow instructions inside
// the caller's transaction. Re-invocation on a settled dare is a no-op.
func (s *SettlementService) settleInTx(tx *gorm.DB, dare *models.Dare, cfg *models.FeeConfig) error {
	if dare.SettledAt != nil {
		return nil // already settled, payout figures never change again
	}

	split := ComputeSplit(dare.Bounty, dare.ReferrerID != nil, cfg)
	now := time.Now()

	res := tx.Model(&models.Dare{}).
		Where("id = ? AND settled_at IS NULL", dare.ID).
		Updates(map[string]interface{}{
			"settled_at":         now,
			"creator_share":      split.CreatorShare,
			"platform_share":     split.PlatformShare,
			"referrer_share":     split.ReferrerShare,
			"fee_config_version": cfg.Version,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // lost the settle race — the winner wrote identical figures
	}

	// The performer is the proof submitter when known, else the named target's
	// payout handle is resolved downstream by the escrow collaborator.
	performer := dare.CreatorID
	if dare.ProofSubmitter != nil {
		performer = *dare.ProofSubmitter
	}

	if err := queueInstruction(tx, dare, models.InstructionPayout, performer, split.CreatorShare,
		"performer share on verification"); err != nil {
		return err
	}
	if err := queueInstruction(tx, dare, models.InstructionPayout, "platform", split.PlatformShare,
		"platform share on verification"); err != nil {
		return err
	}
	if dare.ReferrerID != nil && split.ReferrerShare > 0 {
		if err := queueInstruction(tx, dare, models.InstructionPayout, *dare.ReferrerID, split.ReferrerShare,
			"referrer share on verification"); err != nil {
			return err
		}
	}

	dare.SettledAt = &now
	dare.CreatorShare = split.CreatorShare
	dare.PlatformShare = split.PlatformShare
	dare.ReferrerShare = split.ReferrerShare
	dare.FeeConfigVersion = cfg.Version

	return queueNotification(tx, dare.ID, "dare_verified",
		fmt.Sprintf("settled %.2f/%.2f/%.2f under fee config v%d",
			split.CreatorShare, split.PlatformShare, split.ReferrerShare, cfg.Version))
}

// StealResult is returned from a successful outbid.
type StealResult struct {
	RefundAmount float64 `json:"refund_amount"`
	HouseFee     float64 `json:"house_fee"`
	NewBounty    float64 `json:"new_bounty"`
}

// Steal replaces the current staker with a strictly higher stake. The refund
// computation, bounty update, and staker replacement commit atomically: the
// conditional update is keyed on (status, staker, bounty) so a concurrent
// steal or proof submission leaves this one with a clean conflict and no
// partial effects.
func (s *SettlementService) Steal(dareID, newStakerID string, amount float64) (*StealResult, error) {
	cfg, err := s.CurrentFeeConfig()
	if err != nil {
		return nil, err
	}

	var result *StealResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var dare models.Dare
		if err := tx.Where("id = ?", dareID).First(&dare).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "dare", ID: dareID}
			}
			return err
		}

		if dare.Status != models.DareStatusPending && dare.Status != models.DareStatusAwaitingClaim {
			return &ConflictError{Reason: fmt.Sprintf("dare is %s and no longer stealable", dare.Status)}
		}
		if amount <= dare.Bounty {
			return &ConflictError{Reason: fmt.Sprintf("steal amount %.2f must exceed current bounty %.2f", amount, dare.Bounty)}
		}
		if newStakerID == dare.StakerID {
			return &ConflictError{Reason: "already the current staker"}
		}

		refund := roundCents(dare.Bounty * (1 - cfg.StealFeePct))
		fee := roundCents(dare.Bounty - refund)

		res := tx.Model(&models.Dare{}).
			Where("id = ? AND status = ? AND staker_id = ? AND bounty = ?",
				dare.ID, dare.Status, dare.StakerID, dare.Bounty).
			Updates(map[string]interface{}{
				"bounty":    amount,
				"staker_id": newStakerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Reason: "dare changed concurrently, re-read and retry"}
		}

		if err := queueInstruction(tx, &dare, models.InstructionStealRefund, dare.StakerID, refund,
			fmt.Sprintf("refund to displaced staker (%.0f%% house fee withheld)", cfg.StealFeePct*100)); err != nil {
			return err
		}
		if err := queueNotification(tx, dare.ID, "bounty_stolen",
			fmt.Sprintf("bounty raised %.2f → %.2f", dare.Bounty, amount)); err != nil {
			return err
		}

		result = &StealResult{RefundAmount: refund, HouseFee: fee, NewBounty: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏴 Bounty stolen on dare %s: new staker %s at %.2f (refund %.2f, fee %.2f)",
		dareID, newStakerID, result.NewBounty, result.RefundAmount, result.HouseFee)
	return result, nil
}

func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}

// queueInstruction writes an escrow outbox row inside the caller's
// transaction; the dispatch worker picks it up after commit.
func queueInstruction(tx *gorm.DB, dare *models.Dare, kind models.InstructionType, recipient string, amount float64, memo string) error {
	if amount <= 0 {
		return nil
	}
	return tx.Create(&models.SettlementInstruction{
		ID:          uuid.NewString(),
		DareID:      dare.ID,
		Type:        kind,
		RecipientID: recipient,
		Amount:      amount,
		Currency:    dare.Currency,
		Memo:        memo,
	}).Error
}

// queueNotification writes a terminal-state event for the messaging channel.
func queueNotification(tx *gorm.DB, dareID, kind, detail string) error {
	return tx.Create(&models.NotificationEvent{
		ID:     uuid.NewString(),
		DareID: dareID,
		Kind:   kind,
		Detail: detail,
	}).Error
}
