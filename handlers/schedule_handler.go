package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/models"
	"github.com/mkalewa/skill_exchange/services"
)

type CreateRuleRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=weekly extra blackout"`
	Weekday     *int   `json:"weekday" validate:"omitempty,min=0,max=6"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
	SlotMinutes int    `json:"slot_minutes" validate:"omitempty,oneof=15 30 45 60 90 120"`
}

// CreateAvailabilityRule lets an expert declare when they can be booked.
// Weekly rules recur by weekday; extra and blackout rules need a date.
func CreateAvailabilityRule(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	expertID, _ := uuid.Parse(claims["user_id"].(string))

	var req CreateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Kind == models.RuleWeekly && req.Weekday == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "weekly rules need a weekday"})
	}
	if req.Kind != models.RuleWeekly && req.Date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "extra and blackout rules need a date"})
	}

	rule := models.AvailabilityRule{
		ExpertID:    expertID,
		Kind:        req.Kind,
		Weekday:     req.Weekday,
		StartMinute: parseClock(req.StartTime),
		EndMinute:   parseClock(req.EndTime),
		SlotMinutes: req.SlotMinutes,
	}
	if req.Date != "" {
		date, _ := time.Parse("2006-01-02", req.Date)
		date = services.DateOnly(date)
		rule.Date = &date
	}
	if rule.SlotMinutes == 0 {
		rule.SlotMinutes = 60
	}

	if err := database.DB.Create(&rule).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create rule"})
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func GetMyAvailabilityRules(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	expertID, _ := uuid.Parse(claims["user_id"].(string))

	var rules []models.AvailabilityRule
	database.DB.Where("expert_id = ?", expertID).Order("created_at desc").Find(&rules)

	return c.JSON(rules)
}

// DeleteAvailabilityRule removes a rule. Already-booked sessions keep
// their slot; only future slot computation changes.
func DeleteAvailabilityRule(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	expertID, _ := uuid.Parse(claims["user_id"].(string))
	ruleID := c.Params("ruleId")

	var rule models.AvailabilityRule
	if err := database.DB.First(&rule, "id = ? AND expert_id = ?", ruleID, expertID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Availability rule not found or you do not have permission to delete it."})
	}

	database.DB.Delete(&rule)

	return c.SendStatus(fiber.StatusNoContent)
}
