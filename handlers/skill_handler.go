package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/models"
)

// ListSkills exposes the catalog the booking engine prices sessions
// against. Rates here apply to new bookings only; existing sessions keep
// their snapshotted cost.
func ListSkills(c *fiber.Ctx) error {
	var skills []models.Skill
	if err := database.DB.Order("name asc").Find(&skills).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve skills"})
	}

	return c.JSON(skills)
}
