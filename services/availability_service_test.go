package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalewa/skill_exchange/models"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func slotStarts(slots []TimeSlot) []int {
	starts := make([]int, 0, len(slots))
	for _, s := range slots {
		starts = append(starts, s.StartMinute)
	}
	return starts
}

func TestFreeSlotsExpandsWeeklyRule(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 17*60, 60)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	assert.Equal(t, 9*60, slots[0].StartMinute)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, 16*60, slots[7].StartMinute)

	// Tuesday has no rule.
	slots, err = svc.FreeSlots(expert.ID, monday.AddDate(0, 0, 1), monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFreeSlotsGranularity(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 11*60, 30)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []int{540, 570, 600, 630}, slotStarts(slots))
}

func TestFreeSlotsUnionsOverlappingWindows(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 12*60, 60)
	weeklyRule(t, db, expert, int(time.Monday), 11*60, 14*60, 60)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []int{540, 600, 660, 720, 780}, slotStarts(slots))
}

func TestBlackoutBeatsRecurringRule(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 12*60, 60)
	dateRule(t, db, expert, models.RuleBlackout, monday, 0, 24*60, 0)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// The next Monday is untouched.
	nextMonday := monday.AddDate(0, 0, 7)
	slots, err = svc.FreeSlots(expert.ID, nextMonday, nextMonday)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestPartialBlackoutDropsWholeSlot(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 12*60, 60)
	// 09:15–09:45 only touches the 09:00 slot, but that slot must go.
	dateRule(t, db, expert, models.RuleBlackout, monday, 9*60+15, 9*60+45, 0)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []int{600, 660}, slotStarts(slots))
}

func TestExtraRuleAddsOneOffAvailability(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	tuesday := monday.AddDate(0, 0, 1)
	dateRule(t, db, expert, models.RuleExtra, tuesday, 18*60, 20*60, 60)

	slots, err := svc.FreeSlots(expert.ID, tuesday, tuesday)
	require.NoError(t, err)
	assert.Equal(t, []int{1080, 1140}, slotStarts(slots))
}

func TestCrossMidnightWindowSplitsAcrossDays(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	// Monday 23:00 through Tuesday 01:00.
	weeklyRule(t, db, expert, int(time.Monday), 23*60, 1*60, 60)

	tuesday := monday.AddDate(0, 0, 1)
	slots, err := svc.FreeSlots(expert.ID, monday, tuesday)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.True(t, sameDate(slots[0].Date, monday))
	assert.Equal(t, 23*60, slots[0].StartMinute)
	assert.Equal(t, 24*60, slots[0].EndMinute)

	assert.True(t, sameDate(slots[1].Date, tuesday))
	assert.Equal(t, 0, slots[1].StartMinute)
	assert.Equal(t, 60, slots[1].EndMinute)
}

func TestBookedSlotDisappearsAndCancelledReturns(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	learner := createAccount(t, db, "stu")
	skill := createSkill(t, db, "go", 50)
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 12*60, 60)

	session := models.Session{
		LearnerID:       learner.ID,
		ExpertID:        expert.ID,
		SkillID:         skill.ID,
		Date:            monday,
		StartMinute:     10 * 60,
		DurationMinutes: 60,
		CreditCost:      50,
		Status:          models.StatusUpcoming,
		StatusChangedAt: monday,
	}
	require.NoError(t, db.Create(&session).Error)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []int{540, 660}, slotStarts(slots))

	require.NoError(t, db.Model(&models.Session{}).
		Where("id = ?", session.ID).Update("status", models.StatusCancelled).Error)

	slots, err = svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []int{540, 600, 660}, slotStarts(slots))
}

func TestFreeSlotsUnknownExpert(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)

	_, err := svc.FreeSlots(uuid.New(), monday, monday)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFreeSlotsRangeValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")

	_, err := svc.FreeSlots(expert.ID, monday, monday.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.FreeSlots(expert.ID, monday, monday.AddDate(0, 0, 90))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSlotBookableAcceptsEveryAdvertisedSlot(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	// Two windows of different granularity sharing 09:00-12:00.
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 17*60, 60)
	dateRule(t, db, expert, models.RuleExtra, monday, 9*60, 12*60, 30)

	slots, err := svc.FreeSlots(expert.ID, monday, monday)
	require.NoError(t, err)

	for _, slot := range slots {
		ok, err := svc.SlotBookable(expert.ID, monday, slot.StartMinute, slot.EndMinute-slot.StartMinute, nil)
		require.NoError(t, err)
		assert.True(t, ok, "listed slot %s-%s must be bookable", slot.StartTime, slot.EndTime)
	}

	// A 90-minute request chains a 30- and a 60-minute slot.
	ok, err := svc.SlotBookable(expert.ID, monday, 9*60, 90, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// In the 60-minute-only stretch a shorter booking starts on the slot
	// boundary and consumes the slot in part.
	ok, err = svc.SlotBookable(expert.ID, monday, 13*60, 30, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Nothing starts at the half-hour boundary after the extra window
	// ends.
	ok, err = svc.SlotBookable(expert.ID, monday, 12*60+30, 60, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotBookable(t *testing.T) {
	db := newTestDB(t)
	svc := NewAvailabilityService(db)
	expert := createAccount(t, db, "exp")
	learner := createAccount(t, db, "stu")
	skill := createSkill(t, db, "go", 50)
	weeklyRule(t, db, expert, int(time.Monday), 9*60, 12*60, 30)

	ok, err := svc.SlotBookable(expert.ID, monday, 9*60, 30, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// A 60-minute booking chains two 30-minute slots.
	ok, err = svc.SlotBookable(expert.ID, monday, 9*60, 60, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Misaligned start.
	ok, err = svc.SlotBookable(expert.ID, monday, 9*60+10, 30, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Runs past the window.
	ok, err = svc.SlotBookable(expert.ID, monday, 11*60+30, 60, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	session := models.Session{
		LearnerID:       learner.ID,
		ExpertID:        expert.ID,
		SkillID:         skill.ID,
		Date:            monday,
		StartMinute:     10 * 60,
		DurationMinutes: 30,
		CreditCost:      25,
		Status:          models.StatusUpcoming,
		StatusChangedAt: monday,
	}
	require.NoError(t, db.Create(&session).Error)

	// Overlapping an existing booking fails unless that booking is the
	// one being rescheduled.
	ok, err = svc.SlotBookable(expert.ID, monday, 9*60+30, 60, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.SlotBookable(expert.ID, monday, 9*60+30, 60, &session.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
