package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/services"
)

var validate = validator.New()

// serviceError maps engine errors onto the client-visible statuses:
// 409 for slot contention and illegal transitions, 402 for insufficient
// credits, 403/404/400 as usual. Ledger inconsistencies imply a bug and
// are logged before surfacing a 500.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientFunds):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSlotUnavailable), errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrLedgerInconsistency):
		log.Printf("🔥 CRITICAL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal ledger error"})
	default:
		log.Printf("[ERROR] %v | Path: %s", err, c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
	}
}

func parseClock(clock string) int {
	t, _ := time.Parse("15:04", clock)
	return t.Hour()*60 + t.Minute()
}

type BookSessionRequest struct {
	ExpertID        string `json:"expert_id" validate:"required,uuid"`
	SkillID         string `json:"skill_id" validate:"required,uuid"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=15,max=480"`
	Mode            string `json:"mode" validate:"omitempty,oneof=online offline"`
}

func BookSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	learnerID, _ := uuid.Parse(claims["user_id"].(string))

	var req BookSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	expertID, _ := uuid.Parse(req.ExpertID)
	skillID, _ := uuid.Parse(req.SkillID)
	date, _ := time.Parse("2006-01-02", req.Date)

	svc := services.NewBookingService(database.DB)
	session, err := svc.BookSession(services.BookRequest{
		LearnerID:       learnerID,
		ExpertID:        expertID,
		SkillID:         skillID,
		Date:            date,
		StartMinute:     parseClock(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		Mode:            req.Mode,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func CancelSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	actorID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req CancelSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	svc := services.NewBookingService(database.DB)
	session, err := svc.CancelSession(sessionID, actorID, role, reason)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(session)
}

type RescheduleSessionRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,datetime=15:04"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
}

func RescheduleSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	actorID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req RescheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	date, _ := time.Parse("2006-01-02", req.Date)

	svc := services.NewBookingService(database.DB)
	session, err := svc.RescheduleSession(sessionID, actorID, role, date, parseClock(req.StartTime), req.DurationMinutes)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(session)
}

func CompleteSession(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	actorID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	svc := services.NewBookingService(database.DB)
	session, err := svc.Session(sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	if actorID != session.ExpertID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the expert can complete this session"})
	}

	session, err = svc.CompleteSession(sessionID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(session)
}

func ConfirmJoin(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	actorID, _ := uuid.Parse(claims["user_id"].(string))

	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	svc := services.NewBookingService(database.DB)
	session, err := svc.ConfirmJoin(sessionID, actorID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(session)
}

func GetMySessions(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	accountID, _ := uuid.Parse(claims["user_id"].(string))

	svc := services.NewBookingService(database.DB)
	sessions, err := svc.SessionsForLearner(accountID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(sessions)
}

func GetMyExpertSessions(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	accountID, _ := uuid.Parse(claims["user_id"].(string))

	svc := services.NewBookingService(database.DB)
	sessions, err := svc.SessionsForExpert(accountID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(sessions)
}
