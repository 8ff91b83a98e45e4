package models

import "time"

// NotificationEvent is the outbox row for the external messaging channel.
// Only the event is in scope here; delivery mechanics belong to the channel.
type NotificationEvent struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	DareID string `gorm:"index;not null" json:"dare_id"`
	Kind   string `gorm:"size:32;not null" json:"kind"` // dare_verified, dare_failed, dare_expired, appeal_resolved, dare_flagged, bounty_stolen
	Detail string `gorm:"type:text" json:"detail,omitempty"`

	Dispatched   bool       `gorm:"default:false;index" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	Attempts     int        `gorm:"default:0" json:"attempts"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
