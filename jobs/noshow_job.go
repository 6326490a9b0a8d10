package jobs

import (
	"errors"
	"log"
	"time"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/models"
	"github.com/mkalewa/skill_exchange/services"
)

// MarkNoShowSessions sweeps upcoming sessions where neither party
// confirmed joining by the grace deadline after start.
func MarkNoShowSessions() {
	log.Println("Running job: MarkNoShowSessions...")

	svc := services.NewBookingService(database.DB)
	now := time.Now()

	var candidates []models.Session
	err := database.DB.
		Where("status = ? AND learner_joined_at IS NULL AND expert_joined_at IS NULL AND date <= ?",
			models.StatusUpcoming, services.DateOnly(now)).
		Find(&candidates).Error
	if err != nil {
		log.Printf("Error selecting sessions for no-show sweep: %v", err)
		return
	}

	marked := 0
	for _, session := range candidates {
		if now.Before(session.StartsAt().Add(svc.NoShowGrace)) {
			continue
		}
		if _, err := svc.MarkNoShow(session.ID); err != nil {
			if errors.Is(err, services.ErrInvalidTransition) {
				continue
			}
			log.Printf("Error marking session %s as no-show: %v", session.ID, err)
			continue
		}
		marked++
	}

	if marked > 0 {
		log.Printf("Marked %d session(s) as no-show.", marked)
	}
}
