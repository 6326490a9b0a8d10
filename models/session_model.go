package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	StatusUpcoming  SessionStatus = "upcoming"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
	StatusNoShow    SessionStatus = "no_show"
)

type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	LearnerID uuid.UUID `gorm:"not null;index" json:"learner_id"`
	ExpertID  uuid.UUID `gorm:"not null;index" json:"expert_id"`
	SkillID   uuid.UUID `gorm:"not null" json:"skill_id"`

	Date            time.Time `gorm:"not null;index" json:"date"`
	StartMinute     int       `gorm:"not null" json:"start_minute"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	Mode            string    `gorm:"size:10;not null;default:'online'" json:"mode"`

	// CreditCost is snapshotted at booking time and does not follow
	// later changes to the skill's hourly rate.
	CreditCost int64 `gorm:"not null" json:"credit_cost"`

	Status             SessionStatus `gorm:"size:20;not null;default:'upcoming'" json:"status"`
	CancellationReason *string       `gorm:"type:text" json:"cancellation_reason,omitempty"`

	LearnerJoinedAt *time.Time `json:"learner_joined_at,omitempty"`
	ExpertJoinedAt  *time.Time `json:"expert_joined_at,omitempty"`
	StatusChangedAt time.Time  `json:"status_changed_at"`

	Learner Account `gorm:"foreignkey:LearnerID" json:"learner,omitempty"`
	Expert  Account `gorm:"foreignkey:ExpertID" json:"expert,omitempty"`
	Skill   Skill   `gorm:"foreignkey:SkillID" json:"skill,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Session) StartsAt() time.Time {
	return s.Date.Add(time.Duration(s.StartMinute) * time.Minute)
}

func (s *Session) EndsAt() time.Time {
	return s.StartsAt().Add(time.Duration(s.DurationMinutes) * time.Minute)
}
