package models

import "time"

// Appeal = a creator's one-shot request to re-review a FAILED dare.
type Appeal struct {
	ID         string       `gorm:"primaryKey;type:uuid" json:"id"`
	DareID     string       `gorm:"uniqueIndex;not null" json:"dare_id"` // one appeal per dare
	CreatorID  string       `gorm:"index;not null" json:"creator_id"`
	Reason     string       `gorm:"type:text;not null" json:"reason"`
	Status     AppealStatus `gorm:"size:16;not null;default:'PENDING'" json:"status"`
	ResolvedBy *string      `json:"resolved_by,omitempty"` // operator identity
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	FiledAt    time.Time    `gorm:"autoCreateTime" json:"filed_at"`
}

// OverrideLog is the audit trail for manual operator decisions. Crowd
// resolutions never write here — a row means a human bypassed consensus.
type OverrideLog struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	DareID     string     `gorm:"index;not null" json:"dare_id"`
	OperatorID string     `gorm:"index;not null" json:"operator_id"`
	Action     string     `gorm:"size:32;not null" json:"action"` // e.g. appeal_approved, forced_verified
	FromStatus DareStatus `gorm:"size:16" json:"from_status"`
	ToStatus   DareStatus `gorm:"size:16" json:"to_status"`
	Note       string     `gorm:"type:text" json:"note,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
