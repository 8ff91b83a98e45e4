package models

import "time"

// InstructionType distinguishes what the escrow collaborator should do.
type InstructionType string

const (
	InstructionPayout      InstructionType = "payout"       // settlement splits on VERIFIED
	InstructionStealRefund InstructionType = "steal_refund" // refund to a displaced staker
	InstructionStakeReturn InstructionType = "stake_return" // full return on EXPIRED/FAILED
)

// SettlementInstruction is the outbox row for the external escrow ledger.
// The engine decides outcomes; it never moves money itself. Rows are written
// in the same transaction as the state change that caused them, then a worker
// dispatches them after commit so no transaction spans a network call.
type SettlementInstruction struct {
	ID     string          `gorm:"primaryKey;type:uuid" json:"id"`
	DareID string          `gorm:"index;not null" json:"dare_id"`
	Type   InstructionType `gorm:"size:16;not null" json:"type"`

	RecipientID string  `gorm:"index;not null" json:"recipient_id"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Currency    string  `gorm:"size:8;default:'USD'" json:"currency"`
	Memo        string  `json:"memo,omitempty"`

	Dispatched   bool       `gorm:"default:false;index" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	Attempts     int        `gorm:"default:0" json:"attempts"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
