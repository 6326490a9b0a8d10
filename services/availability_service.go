package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkalewa/skill_exchange/models"
)

const (
	minutesPerDay = 24 * 60

	// Free-slot queries are bounded so a careless range cannot expand
	// months of slots in one request.
	maxRangeDays = 62
)

// TimeSlot is a derived value, never persisted: it is recomputed per
// query so it always reflects the bookings in place at read time.
type TimeSlot struct {
	ExpertID    uuid.UUID `json:"expert_id"`
	Date        time.Time `json:"date"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
}

// AvailabilityService expands an expert's rules into bookable slots and
// subtracts upcoming sessions. It is read-only; races with bookings in
// flight are resolved by the slot lock at commit time, not here.
type AvailabilityService struct {
	db *gorm.DB
}

func NewAvailabilityService(db *gorm.DB) *AvailabilityService {
	return &AvailabilityService{db: db}
}

type span struct {
	start, end int
}

type window struct {
	span
	gran int
}

// FreeSlots returns the open slots for the expert over [from, to],
// ordered by date then start time.
func (s *AvailabilityService) FreeSlots(expertID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	from = DateOnly(from)
	to = DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrInvalidRequest)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRequest, maxRangeDays)
	}

	var count int64
	if err := s.db.Model(&models.Account{}).Where("id = ?", expertID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check expert: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: expert %s", ErrNotFound, expertID)
	}

	var rules []models.AvailabilityRule
	if err := s.db.Where("expert_id = ?", expertID).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}

	var sessions []models.Session
	err := s.db.
		Where("expert_id = ? AND status = ? AND date BETWEEN ? AND ?",
			expertID, models.StatusUpcoming, from, to).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	byDate := make(map[string][]models.Session)
	for _, sess := range sessions {
		key := sess.Date.Format("2006-01-02")
		byDate[key] = append(byDate[key], sess)
	}

	var slots []TimeSlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		slots = append(slots, freeSlotsForDate(expertID, rules, byDate[day.Format("2006-01-02")], day, nil)...)
	}
	return slots, nil
}

// SlotBookable is the commit-time re-check used by booking: the requested
// span must be exactly covered by open slots on that date. exclude skips
// one session when re-validating a reschedule against its own booking.
func (s *AvailabilityService) SlotBookable(expertID uuid.UUID, date time.Time, startMinute, durationMinutes int, exclude *uuid.UUID) (bool, error) {
	date = DateOnly(date)

	var rules []models.AvailabilityRule
	if err := s.db.Where("expert_id = ?", expertID).Find(&rules).Error; err != nil {
		return false, fmt.Errorf("select rules: %w", err)
	}

	var sessions []models.Session
	err := s.db.
		Where("expert_id = ? AND status = ? AND date = ?", expertID, models.StatusUpcoming, date).
		Find(&sessions).Error
	if err != nil {
		return false, fmt.Errorf("select sessions: %w", err)
	}

	slots := freeSlotsForDate(expertID, rules, sessions, date, exclude)
	endsByStart := make(map[int][]int, len(slots))
	for _, slot := range slots {
		endsByStart[slot.StartMinute] = append(endsByStart[slot.StartMinute], slot.EndMinute)
	}

	// Overlapping windows can advertise slots of different lengths at
	// the same start. The span is bookable when it lies within a chain
	// of advertised slots: intermediate slots are consumed whole and the
	// last slot of the chain may be consumed only in part.
	target := startMinute + durationMinutes
	dead := make(map[int]bool)
	var covers func(from int) bool
	covers = func(from int) bool {
		if dead[from] {
			return false
		}
		for _, end := range endsByStart[from] {
			if end >= target || covers(end) {
				return true
			}
		}
		dead[from] = true
		return false
	}
	return covers(startMinute), nil
}

// ExpertExists reports whether the account is known; listing handlers use
// it to turn an unknown expert into a 404.
func (s *AvailabilityService) ExpertExists(expertID uuid.UUID) (bool, error) {
	var account models.Account
	err := s.db.First(&account, "id = ?", expertID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func freeSlotsForDate(expertID uuid.UUID, rules []models.AvailabilityRule, sessions []models.Session, day time.Time, exclude *uuid.UUID) []TimeSlot {
	var windows []window
	var blackouts []span

	for _, r := range rules {
		for _, sp := range ruleSpansOn(r, day) {
			switch r.Kind {
			case models.RuleBlackout:
				blackouts = append(blackouts, sp)
			case models.RuleWeekly, models.RuleExtra:
				gran := r.SlotMinutes
				if gran <= 0 {
					gran = 60
				}
				windows = append(windows, window{span: sp, gran: gran})
			}
		}
	}

	var busy []span
	for _, sess := range sessions {
		if exclude != nil && sess.ID == *exclude {
			continue
		}
		busy = append(busy, span{sess.StartMinute, sess.StartMinute + sess.DurationMinutes})
	}

	seen := make(map[span]bool)
	var slots []TimeSlot
	for _, w := range windows {
		for start := w.start; start+w.gran <= w.end; start += w.gran {
			sp := span{start, start + w.gran}
			if seen[sp] {
				continue
			}
			seen[sp] = true
			// A slot touched by a blackout is dropped whole, even when
			// the blackout only partially covers it.
			if overlapsAny(sp, blackouts) || overlapsAny(sp, busy) {
				continue
			}
			slots = append(slots, TimeSlot{
				ExpertID:    expertID,
				Date:        day,
				StartMinute: sp.start,
				EndMinute:   sp.end,
				StartTime:   minuteClock(sp.start),
				EndTime:     minuteClock(sp.end),
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartMinute != slots[j].StartMinute {
			return slots[i].StartMinute < slots[j].StartMinute
		}
		return slots[i].EndMinute < slots[j].EndMinute
	})
	return slots
}

// ruleSpansOn resolves what a rule contributes to one calendar day. A
// window with EndMinute <= StartMinute crosses midnight: its head stays
// on the rule's own day and its tail lands on the following day, so no
// slot ever spans midnight.
func ruleSpansOn(r models.AvailabilityRule, day time.Time) []span {
	crosses := r.EndMinute <= r.StartMinute

	var spans []span
	if ruleAppliesTo(r, day) {
		if crosses {
			spans = append(spans, span{r.StartMinute, minutesPerDay})
		} else {
			spans = append(spans, span{r.StartMinute, r.EndMinute})
		}
	}
	if crosses && r.EndMinute > 0 && ruleAppliesTo(r, day.AddDate(0, 0, -1)) {
		spans = append(spans, span{0, r.EndMinute})
	}
	return spans
}

func ruleAppliesTo(r models.AvailabilityRule, day time.Time) bool {
	switch r.Kind {
	case models.RuleWeekly:
		return r.Weekday != nil && *r.Weekday == int(day.Weekday())
	case models.RuleExtra, models.RuleBlackout:
		return r.Date != nil && sameDate(*r.Date, day)
	}
	return false
}

func overlapsAny(sp span, others []span) bool {
	for _, o := range others {
		if sp.start < o.end && o.start < sp.end {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func minuteClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DateOnly truncates a timestamp to its UTC calendar date, the canonical
// form for session and rule dates.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
