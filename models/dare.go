package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// DareStatus is the lifecycle status of a dare.
type DareStatus string

const (
	DareStatusPending       DareStatus = "PENDING"
	DareStatusAwaitingClaim DareStatus = "AWAITING_CLAIM" // open dares only
	DareStatusPendingReview DareStatus = "PENDING_REVIEW"
	DareStatusVerified      DareStatus = "VERIFIED"
	DareStatusFailed        DareStatus = "FAILED"
	DareStatusExpired       DareStatus = "EXPIRED"
)

// AppealStatus tracks the creator-initiated re-review of a FAILED dare.
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "PENDING"
	AppealStatusApproved AppealStatus = "APPROVED"
	AppealStatusRejected AppealStatus = "REJECTED"
)

// RiskLevel is the scorer's classification of a dare's content+stake risk.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Dare is the aggregate root: a staked challenge awaiting proof of completion.
type Dare struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PublicID string `gorm:"uniqueIndex;not null" json:"public_id"` // short slug for URLs

	Title        string  `gorm:"not null" json:"title"`
	Description  string  `gorm:"type:text" json:"description,omitempty"`
	TargetHandle *string `gorm:"index" json:"target_handle,omitempty"` // nil = open dare
	CreatorID    string  `gorm:"index;not null" json:"creator_id"`

	// Economic state
	Bounty     float64 `gorm:"not null" json:"bounty"`
	Currency   string  `gorm:"size:8;default:'USD'" json:"currency"`
	StakerID   string  `gorm:"index;not null" json:"staker_id"`
	ReferrerID *string `gorm:"index" json:"referrer_id,omitempty"`

	// Lifecycle
	Status       DareStatus    `gorm:"index;not null;default:'PENDING'" json:"status"`
	AppealStatus *AppealStatus `json:"appeal_status,omitempty"`
	ExpiresAt    *time.Time    `gorm:"index" json:"expires_at,omitempty"`

	// ReviewRound distinguishes consensus rounds: an approved appeal bumps it so
	// votes from the failed round stop counting toward quorum.
	ReviewRound int `gorm:"not null;default:1" json:"review_round"`

	// Proof (at most one active reference)
	ProofRef        *string    `json:"proof_ref,omitempty"`
	ProofCapturedAt *time.Time `json:"proof_captured_at,omitempty"`
	ProofConfidence float64    `json:"proof_confidence"`
	ProofSubmitter  *string    `json:"proof_submitter,omitempty"`

	// Risk audit: full scorer output persisted at creation, not just branched on.
	RiskLevel         RiskLevel `gorm:"size:16" json:"risk_level"`
	RiskConfidence    float64   `json:"risk_confidence"`
	RiskReason        string    `json:"risk_reason,omitempty"`
	MatchedPatterns   string    `gorm:"type:text" json:"matched_patterns,omitempty"` // comma-joined
	Flagged           bool      `gorm:"default:false" json:"flagged"`
	PendingModeration bool      `gorm:"default:false;index" json:"pending_moderation"`

	// Settlement: populated exactly once, when the dare reaches VERIFIED.
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	CreatorShare     float64    `json:"creator_share"`
	PlatformShare    float64    `json:"platform_share"`
	ReferrerShare    float64    `json:"referrer_share"`
	FeeConfigVersion int        `json:"fee_config_version"`

	Timestamps
}

// Terminal reports whether the dare can never transition again on its own.
// FAILED is terminal for the lifecycle but re-openable via an approved appeal.
func (d *Dare) Terminal() bool {
	return d.Status == DareStatusVerified || d.Status == DareStatusExpired || d.Status == DareStatusFailed
}

// NewPublicID derives a short URL-safe id from the dare title plus a uuid fragment.
func NewPublicID(title string) string {
	base := slug.Make(title)
	if len(base) > 32 {
		base = base[:32]
	}
	base = strings.Trim(base, "-")
	if base == "" {
		base = "dare"
	}
	return base + "-" + uuid.NewString()[:8]
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
