package models

import "time"

// VoteDirection is a reviewer's verdict on a dare's proof.
type VoteDirection string

const (
	VoteApprove VoteDirection = "APPROVE"
	VoteReject  VoteDirection = "REJECT"
)

// Vote = one reviewer's verdict on one dare. Created once, never mutated or
// deleted; the composite unique index is what makes duplicate casts a no-op.
type Vote struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	DareID      string        `gorm:"not null;uniqueIndex:idx_dare_voter" json:"dare_id"`
	VoterID     string        `gorm:"not null;uniqueIndex:idx_dare_voter" json:"voter_id"`
	Direction   VoteDirection `gorm:"size:8;not null" json:"direction"`
	ReviewRound int           `gorm:"not null;default:1" json:"review_round"`
	CastAt      time.Time     `gorm:"autoCreateTime" json:"cast_at"`
}
