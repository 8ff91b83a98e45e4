package models

import "time"

// ProofLedgerEntry records a proof reference the moment it passes validation.
// One artifact may settle at most one dare, ever: the unique index on the
// normalized reference is the replay protection, and rows are never deleted.
type ProofLedgerEntry struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	NormalizedRef string    `gorm:"uniqueIndex;not null" json:"normalized_ref"`
	DareID        string    `gorm:"index;not null" json:"dare_id"`
	SubmitterID   string    `gorm:"index" json:"submitter_id"`
	ConsumedAt    time.Time `gorm:"autoCreateTime" json:"consumed_at"`
}
