package jobs

import (
	"errors"
	"log"
	"time"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/models"
	"github.com/mkalewa/skill_exchange/services"
)

// CompleteElapsedSessions pays out upcoming sessions whose end time has
// passed and where at least one party confirmed joining. Sessions nobody
// joined are left for the no-show sweep.
func CompleteElapsedSessions() {
	log.Println("Running job: CompleteElapsedSessions...")

	svc := services.NewBookingService(database.DB)
	now := time.Now()

	var candidates []models.Session
	err := database.DB.
		Where("status = ? AND date <= ?", models.StatusUpcoming, services.DateOnly(now)).
		Find(&candidates).Error
	if err != nil {
		log.Printf("Error selecting sessions for completion: %v", err)
		return
	}

	completed := 0
	for _, session := range candidates {
		if now.Before(session.EndsAt()) {
			continue
		}
		if session.LearnerJoinedAt == nil && session.ExpertJoinedAt == nil {
			continue
		}
		if _, err := svc.CompleteSession(session.ID); err != nil {
			if errors.Is(err, services.ErrInvalidTransition) {
				continue
			}
			log.Printf("Error completing session %s: %v", session.ID, err)
			continue
		}
		completed++
	}

	if completed > 0 {
		log.Printf("Completed %d session(s).", completed)
	}
}
