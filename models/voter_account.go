package models

import "time"

// VoterAccount tracks gamified reviewer state per voter (denormalized for performance).
// Mutated only by the voting engine: participation points on cast, bonus +
// streak bookkeeping when a dare resolves. Totals are monotonic — resolution
// is a one-time event per dare and is never recomputed.
type VoterAccount struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	VoterID string `gorm:"uniqueIndex;not null" json:"voter_id"` // external identity from gateway

	TotalPoints   int64 `json:"total_points" gorm:"default:0"`
	CurrentStreak int64 `json:"current_streak" gorm:"default:0"` // consecutive consensus-aligned votes
	BestStreak    int64 `json:"best_streak" gorm:"default:0"`
	TotalVotes    int64 `json:"total_votes" gorm:"default:0"`
	CorrectVotes  int64 `json:"correct_votes" gorm:"default:0"`

	LastVotedAt *time.Time `json:"last_voted_at,omitempty"`

	Timestamps
}

// Accuracy returns lifetime consensus-alignment as a ratio in [0,1].
func (a *VoterAccount) Accuracy() float64 {
	if a.TotalVotes == 0 {
		return 0
	}
	return float64(a.CorrectVotes) / float64(a.TotalVotes)
}
