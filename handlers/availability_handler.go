package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/services"
)

// ListAvailableSlots expands the expert's rules over the requested range
// and returns the slots still open. Defaults to the next seven days.
func ListAvailableSlots(c *fiber.Ctx) error {
	expertID, err := uuid.Parse(c.Query("expert_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expert_id is required"})
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, 7)
	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be YYYY-MM-DD"})
		}
		to = from.AddDate(0, 0, 7)
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be YYYY-MM-DD"})
		}
	}

	svc := services.NewAvailabilityService(database.DB)
	slots, err := svc.FreeSlots(expertID, from, to)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"expert_id": expertID, "slots": slots})
}
