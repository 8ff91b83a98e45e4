package models

import "time"

// FeeConfig is the versioned economics configuration applied at settlement
// time. Settled dares stamp the version they used so historical payouts stay
// explainable even after rates change. Percentages are fractions of stake;
// CreatorPct + PlatformPct + ReferrerPct must not exceed 1.0 — any remainder
// accrues to the platform.
type FeeConfig struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	Version int    `gorm:"uniqueIndex;not null" json:"version"`

	CreatorPct  float64 `gorm:"not null" json:"creator_pct"`  // share to the dare's target/performer
	PlatformPct float64 `gorm:"not null" json:"platform_pct"` // house cut on settlement
	ReferrerPct float64 `gorm:"not null" json:"referrer_pct"` // paid only when a referrer is attached

	StealFeePct     float64 `gorm:"not null" json:"steal_fee_pct"`    // house fee withheld from a displaced staker's refund
	ReviewThreshold float64 `gorm:"not null" json:"review_threshold"` // stakes at/above this never auto-settle
	QuorumSize      int     `gorm:"not null" json:"quorum_size"`      // votes required before consensus resolves
	VotePoints      int64   `gorm:"not null" json:"vote_points"`      // flat participation reward
	ConsensusPoints int64   `gorm:"not null" json:"consensus_points"` // bonus for consensus-aligned votes

	EffectiveFrom time.Time `gorm:"not null" json:"effective_from"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DefaultFeeConfig seeds version 1 when the table is empty.
var DefaultFeeConfig = FeeConfig{
	Version:         1,
	CreatorPct:      0.85,
	PlatformPct:     0.10,
	ReferrerPct:     0.05,
	StealFeePct:     0.10,
	ReviewThreshold: 50.0,
	QuorumSize:      10,
	VotePoints:      10,
	ConsensusPoints: 50,
}
