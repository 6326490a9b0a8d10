package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	config "github.com/mkalewa/skill_exchange/configs"
	"github.com/mkalewa/skill_exchange/events"
	"github.com/mkalewa/skill_exchange/models"
)

// BookingService owns the session lifecycle. Sessions are mutated only
// through its transitions, and every transition that moves credits shares
// one transaction with the ledger posts, so a failure anywhere rolls the
// whole unit back — the engine never leaves a debited-but-unbooked
// learner.
type BookingService struct {
	db           *gorm.DB
	Availability *AvailabilityService
	Wallet       *WalletService
	Locks        *SlotLockManager

	Policy              RefundPolicy
	PlatformFeePercent  int
	NoShowGrace         time.Duration
	NoShowRefundPercent int

	Publish func(events.SessionEvent)
	Now     func() time.Time
}

var (
	sharedLocksOnce sync.Once
	sharedLocks     *SlotLockManager
)

// SharedLocks is the process-wide lock manager. Every booking path must
// go through the same instance or the mutual exclusion is void.
func SharedLocks() *SlotLockManager {
	sharedLocksOnce.Do(func() {
		ttl := time.Duration(config.ConfigInt("SLOT_LOCK_TTL_SECONDS", 5)) * time.Second
		sharedLocks = NewSlotLockManager(ttl)
	})
	return sharedLocks
}

func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{
		db:           db,
		Availability: NewAvailabilityService(db),
		Wallet:       NewWalletService(db),
		Locks:        SharedLocks(),
		Policy: RefundPolicy{
			FullRefundWindow: time.Duration(config.ConfigInt("FULL_REFUND_HOURS", 24)) * time.Hour,
			LatePercent:      config.ConfigInt("LATE_REFUND_PERCENT", 0),
		},
		PlatformFeePercent:  config.ConfigInt("PLATFORM_FEE_PERCENT", 5),
		NoShowGrace:         time.Duration(config.ConfigInt("NO_SHOW_GRACE_MINUTES", 15)) * time.Minute,
		NoShowRefundPercent: config.ConfigInt("NO_SHOW_REFUND_PERCENT", 0),
		Publish:             events.Publish,
		Now:                 time.Now,
	}
}

// CreditCost converts an hourly rate into the cost of a session,
// rounding up to whole credits.
func CreditCost(creditsPerHour int64, durationMinutes int) int64 {
	return (creditsPerHour*int64(durationMinutes) + 59) / 60
}

type BookRequest struct {
	LearnerID       uuid.UUID
	ExpertID        uuid.UUID
	SkillID         uuid.UUID
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Mode            string
}

// BookSession locks every bucket the requested span covers, re-checks
// the slot against current rules and bookings, then debits the learner's
// hold and persists the session in one transaction. The hold stays with the platform until
// completion pays the expert or cancellation refunds the learner.
func (s *BookingService) BookSession(req BookRequest) (*models.Session, error) {
	now := s.Now()
	date := DateOnly(req.Date)

	if req.Mode == "" {
		req.Mode = "online"
	}
	if req.Mode != "online" && req.Mode != "offline" {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	if req.StartMinute < 0 || req.StartMinute >= minutesPerDay {
		return nil, fmt.Errorf("%w: start minute out of range", ErrInvalidRequest)
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > minutesPerDay {
		return nil, fmt.Errorf("%w: bad duration", ErrInvalidRequest)
	}
	if req.LearnerID == req.ExpertID {
		return nil, fmt.Errorf("%w: cannot book yourself", ErrInvalidRequest)
	}

	startsAt := date.Add(time.Duration(req.StartMinute) * time.Minute)
	if !startsAt.After(now) {
		return nil, fmt.Errorf("%w: session must start in the future", ErrInvalidRequest)
	}

	exists, err := s.Availability.ExpertExists(req.ExpertID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: expert %s", ErrNotFound, req.ExpertID)
	}

	var skill models.Skill
	if err := s.db.First(&skill, "id = ?", req.SkillID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: skill %s", ErrNotFound, req.SkillID)
		}
		return nil, fmt.Errorf("load skill: %w", err)
	}
	cost := CreditCost(skill.CreditsPerHour, req.DurationMinutes)

	requestID := uuid.NewString()
	keys := SlotSpanKeys(req.ExpertID, date, req.StartMinute, req.DurationMinutes)
	if !s.Locks.AcquireAll(keys, requestID) {
		return nil, fmt.Errorf("%w: another booking for this slot is in flight", ErrSlotUnavailable)
	}
	defer s.Locks.ReleaseAll(keys, requestID)

	ok, err := s.Availability.SlotBookable(req.ExpertID, date, req.StartMinute, req.DurationMinutes, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: slot is not open", ErrSlotUnavailable)
	}

	session := &models.Session{
		ID:              uuid.New(),
		LearnerID:       req.LearnerID,
		ExpertID:        req.ExpertID,
		SkillID:         req.SkillID,
		Date:            date,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
		Mode:            req.Mode,
		CreditCost:      cost,
		Status:          models.StatusUpcoming,
		StatusChangedAt: now,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		_, err := postEntryTx(tx, req.LearnerID, -cost, models.ReasonBookingHold, &session.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Publish(events.SessionEvent{Type: events.SessionUpcoming, Session: session})
	return session, nil
}

// CancelSession moves an upcoming session to Cancelled and refunds the
// learner per policy. Only the learner, the expert, or an admin may
// cancel. The freed slot reappears in availability immediately because
// the calculator filters on non-cancelled sessions.
func (s *BookingService) CancelSession(sessionID, actorID uuid.UUID, actorRole string, reason *string) (*models.Session, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if actorID != session.LearnerID && actorID != session.ExpertID && actorRole != "admin" {
		return nil, fmt.Errorf("%w: not a party to this session", ErrUnauthorized)
	}
	if session.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("%w: cannot cancel a %s session", ErrInvalidTransition, session.Status)
	}

	now := s.Now()
	refund := s.Policy.RefundAmount(now, session.StartsAt(), session.CreditCost)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", session.ID, models.StatusUpcoming).
			Updates(map[string]interface{}{
				"status":              models.StatusCancelled,
				"cancellation_reason": reason,
				"status_changed_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session already transitioned", ErrInvalidTransition)
		}
		if refund > 0 {
			if _, err := postEntryTx(tx, session.LearnerID, refund, models.ReasonCancellationRefund, &session.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err = s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.Publish(events.SessionEvent{Type: events.SessionCancelled, Session: session})
	return session, nil
}

// CompleteSession pays the expert: a BookingPayout of the full creditCost
// and a separate PlatformFee debit. Idempotent — completing an already
// completed session returns it unchanged, so the payout is posted exactly
// once.
func (s *BookingService) CompleteSession(sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusCompleted {
		return session, nil
	}
	if session.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("%w: cannot complete a %s session", ErrInvalidTransition, session.Status)
	}

	now := s.Now()
	if now.Before(session.EndsAt()) {
		return nil, fmt.Errorf("%w: session has not ended yet", ErrInvalidTransition)
	}

	fee := s.platformFee(session.CreditCost)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", session.ID, models.StatusUpcoming).
			Updates(map[string]interface{}{
				"status":            models.StatusCompleted,
				"status_changed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session already transitioned", ErrInvalidTransition)
		}
		if _, err := postEntryTx(tx, session.ExpertID, session.CreditCost, models.ReasonBookingPayout, &session.ID); err != nil {
			return err
		}
		if fee > 0 {
			if _, err := postEntryTx(tx, session.ExpertID, -fee, models.ReasonPlatformFee, &session.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err = s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.Publish(events.SessionEvent{Type: events.SessionCompleted, Session: session})
	return session, nil
}

// MarkNoShow is the administrative transition for sessions where neither
// party confirmed joining by start + grace. No slot is freed (the time
// has passed) and the refund defaults to zero.
func (s *BookingService) MarkNoShow(sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("%w: cannot mark a %s session as no-show", ErrInvalidTransition, session.Status)
	}
	if session.LearnerJoinedAt != nil || session.ExpertJoinedAt != nil {
		return nil, fmt.Errorf("%w: a party confirmed joining", ErrInvalidTransition)
	}

	now := s.Now()
	if now.Before(session.StartsAt().Add(s.NoShowGrace)) {
		return nil, fmt.Errorf("%w: grace period still running", ErrInvalidTransition)
	}

	pct := s.NoShowRefundPercent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	refund := session.CreditCost * int64(pct) / 100

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", session.ID, models.StatusUpcoming).
			Updates(map[string]interface{}{
				"status":            models.StatusNoShow,
				"status_changed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session already transitioned", ErrInvalidTransition)
		}
		if refund > 0 {
			if _, err := postEntryTx(tx, session.LearnerID, refund, models.ReasonNoShowRefund, &session.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err = s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.Publish(events.SessionEvent{Type: events.SessionNoShow, Session: session})
	return session, nil
}

// ConfirmJoin records that a party showed up. Accepted from either side
// of an upcoming session until the no-show grace deadline.
func (s *BookingService) ConfirmJoin(sessionID, actorID uuid.UUID) (*models.Session, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if actorID != session.LearnerID && actorID != session.ExpertID {
		return nil, fmt.Errorf("%w: not a party to this session", ErrUnauthorized)
	}
	if session.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("%w: cannot join a %s session", ErrInvalidTransition, session.Status)
	}

	now := s.Now()
	if now.After(session.EndsAt().Add(s.NoShowGrace)) {
		return nil, fmt.Errorf("%w: session is over", ErrInvalidTransition)
	}

	column := "learner_joined_at"
	if actorID == session.ExpertID {
		column = "expert_joined_at"
	}
	// Guarded on status so a join racing a cancellation cannot stamp a
	// session that is no longer upcoming.
	err = s.db.Model(&models.Session{}).
		Where("id = ? AND status = ? AND "+column+" IS NULL", session.ID, models.StatusUpcoming).
		Update(column, now).Error
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	return s.loadSession(sessionID)
}

// RescheduleSession moves an upcoming session to a new slot, keeping the
// sessionId and its ledger history. The new slot goes through the full
// lock + availability validation; a changed duration posts a correcting
// hold or release so the held amount always matches the snapshot cost.
func (s *BookingService) RescheduleSession(sessionID, actorID uuid.UUID, actorRole string, newDate time.Time, newStartMinute int, newDurationMinutes *int) (*models.Session, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if actorID != session.LearnerID && actorID != session.ExpertID && actorRole != "admin" {
		return nil, fmt.Errorf("%w: not a party to this session", ErrUnauthorized)
	}
	if session.Status != models.StatusUpcoming {
		return nil, fmt.Errorf("%w: cannot reschedule a %s session", ErrInvalidTransition, session.Status)
	}

	duration := session.DurationMinutes
	if newDurationMinutes != nil {
		duration = *newDurationMinutes
	}
	if duration <= 0 || duration > minutesPerDay {
		return nil, fmt.Errorf("%w: bad duration", ErrInvalidRequest)
	}
	if newStartMinute < 0 || newStartMinute >= minutesPerDay {
		return nil, fmt.Errorf("%w: start minute out of range", ErrInvalidRequest)
	}

	now := s.Now()
	date := DateOnly(newDate)
	startsAt := date.Add(time.Duration(newStartMinute) * time.Minute)
	if !startsAt.After(now) {
		return nil, fmt.Errorf("%w: session must start in the future", ErrInvalidRequest)
	}

	// Rebase the snapshot cost on the new duration; the hourly rate the
	// learner locked in at booking time is preserved.
	newCost := (session.CreditCost*int64(duration) + int64(session.DurationMinutes) - 1) / int64(session.DurationMinutes)

	requestID := uuid.NewString()
	keys := SlotSpanKeys(session.ExpertID, date, newStartMinute, duration)
	if !s.Locks.AcquireAll(keys, requestID) {
		return nil, fmt.Errorf("%w: another booking for this slot is in flight", ErrSlotUnavailable)
	}
	defer s.Locks.ReleaseAll(keys, requestID)

	ok, err := s.Availability.SlotBookable(session.ExpertID, date, newStartMinute, duration, &session.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: slot is not open", ErrSlotUnavailable)
	}

	diff := newCost - session.CreditCost
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", session.ID, models.StatusUpcoming).
			Updates(map[string]interface{}{
				"date":              date,
				"start_minute":      newStartMinute,
				"duration_minutes":  duration,
				"credit_cost":       newCost,
				"status_changed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session already transitioned", ErrInvalidTransition)
		}
		if diff > 0 {
			if _, err := postEntryTx(tx, session.LearnerID, -diff, models.ReasonBookingHold, &session.ID); err != nil {
				return err
			}
		}
		if diff < 0 {
			if _, err := postEntryTx(tx, session.LearnerID, -diff, models.ReasonBookingRelease, &session.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err = s.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.Publish(events.SessionEvent{Type: events.SessionRescheduled, Session: session})
	return session, nil
}

// ListAvailability is a pass-through to the calculator.
func (s *BookingService) ListAvailability(expertID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	return s.Availability.FreeSlots(expertID, from, to)
}

// SessionsForLearner returns the account's sessions as a learner, most
// recent first.
func (s *BookingService) SessionsForLearner(accountID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.
		Preload("Expert").
		Preload("Skill").
		Where("learner_id = ?", accountID).
		Order("date desc, start_minute desc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	return sessions, nil
}

// SessionsForExpert returns the account's sessions as an expert, most
// recent first.
func (s *BookingService) SessionsForExpert(accountID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.
		Preload("Learner").
		Preload("Skill").
		Where("expert_id = ?", accountID).
		Order("date desc, start_minute desc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	return sessions, nil
}

// Session loads one session with its parties and skill.
func (s *BookingService) Session(sessionID uuid.UUID) (*models.Session, error) {
	return s.loadSession(sessionID)
}

func (s *BookingService) loadSession(sessionID uuid.UUID) (*models.Session, error) {
	var session models.Session
	err := s.db.First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &session, nil
}

func (s *BookingService) platformFee(cost int64) int64 {
	pct := s.PlatformFeePercent
	if pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	// Fees round up so the platform never pays out more than it held.
	return (cost*int64(pct) + 99) / 100
}
