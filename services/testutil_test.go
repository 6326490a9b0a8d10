package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkalewa/skill_exchange/events"
	"github.com/mkalewa/skill_exchange/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A pooled connection would get its own empty in-memory database;
	// pin everything to one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Skill{},
		&models.AvailabilityRule{},
		&models.Session{},
		&models.LedgerEntry{},
	))
	return db
}

func newTestBookingService(db *gorm.DB, now time.Time) *BookingService {
	clock := now
	return &BookingService{
		db:           db,
		Availability: NewAvailabilityService(db),
		Wallet:       NewWalletService(db),
		Locks:        NewSlotLockManager(2 * time.Second),
		Policy: RefundPolicy{
			FullRefundWindow: 24 * time.Hour,
			LatePercent:      0,
		},
		PlatformFeePercent:  5,
		NoShowGrace:         15 * time.Minute,
		NoShowRefundPercent: 0,
		Publish:             func(events.SessionEvent) {},
		Now:                 func() time.Time { return clock },
	}
}

func createAccount(t *testing.T, db *gorm.DB, name string) models.Account {
	t.Helper()

	account := models.Account{
		FullName: name,
		Email:    name + "@example.com",
		Password: "x",
		Role:     "member",
	}
	require.NoError(t, db.Create(&account).Error)
	return account
}

func createFundedAccount(t *testing.T, db *gorm.DB, name string, credits int64) models.Account {
	t.Helper()

	account := createAccount(t, db, name)
	if credits > 0 {
		_, err := NewWalletService(db).PostEntry(account.ID, credits, models.ReasonAdminGrant, nil)
		require.NoError(t, err)
	}
	return account
}

func createSkill(t *testing.T, db *gorm.DB, name string, creditsPerHour int64) models.Skill {
	t.Helper()

	skill := models.Skill{Name: name, CreditsPerHour: creditsPerHour}
	require.NoError(t, db.Create(&skill).Error)
	return skill
}

func weeklyRule(t *testing.T, db *gorm.DB, expert models.Account, weekday, startMinute, endMinute, slotMinutes int) models.AvailabilityRule {
	t.Helper()

	rule := models.AvailabilityRule{
		ExpertID:    expert.ID,
		Kind:        models.RuleWeekly,
		Weekday:     &weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		SlotMinutes: slotMinutes,
	}
	require.NoError(t, db.Create(&rule).Error)
	return rule
}

func dateRule(t *testing.T, db *gorm.DB, expert models.Account, kind string, date time.Time, startMinute, endMinute, slotMinutes int) models.AvailabilityRule {
	t.Helper()

	d := DateOnly(date)
	rule := models.AvailabilityRule{
		ExpertID:    expert.ID,
		Kind:        kind,
		Date:        &d,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		SlotMinutes: slotMinutes,
	}
	require.NoError(t, db.Create(&rule).Error)
	return rule
}
