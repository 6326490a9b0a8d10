package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RuleWeekly   = "weekly"
	RuleExtra    = "extra"
	RuleBlackout = "blackout"
)

// AvailabilityRule describes when an expert can be booked. Weekly rules
// recur by weekday; extra and blackout rules apply to a single date.
// A blackout always wins over any overlapping weekly or extra window.
type AvailabilityRule struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ExpertID uuid.UUID `gorm:"not null;index" json:"-"`
	Kind     string    `gorm:"size:10;not null" json:"kind"`

	Weekday *int       `json:"weekday,omitempty"`
	Date    *time.Time `json:"date,omitempty"`

	// Minutes since midnight. EndMinute <= StartMinute means the window
	// crosses midnight and its tail belongs to the next calendar day.
	StartMinute int `gorm:"not null" json:"start_minute"`
	EndMinute   int `gorm:"not null" json:"end_minute"`

	// SlotMinutes is the bookable granularity for weekly/extra windows.
	SlotMinutes int `gorm:"not null;default:60" json:"slot_minutes"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *AvailabilityRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
