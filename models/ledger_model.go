package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LedgerReason string

const (
	ReasonBookingHold        LedgerReason = "booking_hold"
	ReasonBookingRelease     LedgerReason = "booking_release"
	ReasonBookingPayout      LedgerReason = "booking_payout"
	ReasonCancellationRefund LedgerReason = "cancellation_refund"
	ReasonNoShowRefund       LedgerReason = "no_show_refund"
	ReasonPlatformFee        LedgerReason = "platform_fee"
	ReasonAdminGrant         LedgerReason = "admin_grant"
)

// LedgerEntry is an immutable signed credit movement. Entries are never
// updated or deleted; corrections are new offsetting entries.
type LedgerEntry struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	AccountID uuid.UUID    `gorm:"not null;uniqueIndex:idx_ledger_account_seq,priority:1" json:"account_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Reason    LedgerReason `gorm:"size:30;not null" json:"reason"`
	SessionID *uuid.UUID   `gorm:"index" json:"session_id,omitempty"`

	// Sequence is monotonic per account and assigned under the account
	// row lock, so replaying entries in sequence order is deterministic.
	Sequence int64 `gorm:"not null;uniqueIndex:idx_ledger_account_seq,priority:2" json:"sequence"`

	CreatedAt time.Time `json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
