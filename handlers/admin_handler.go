package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/models"
	"github.com/mkalewa/skill_exchange/services"
)

type CreateAccountRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=member admin"`
}

// CreateAccount provisions a wallet-bearing account. Every account is
// both learner- and expert-capable; the role claim only gates admin
// routes.
func CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var count int64
	if err := database.DB.Model(&models.Account{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An account with this email already exists."})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	role := req.Role
	if role == "" {
		role = "member"
	}

	account := models.Account{
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := database.DB.Create(&account).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

type CreateSkillRequest struct {
	Name           string `json:"name" validate:"required"`
	CreditsPerHour int64  `json:"credits_per_hour" validate:"required,min=1"`
}

func CreateSkill(c *fiber.Ctx) error {
	var req CreateSkillRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	skill := models.Skill{Name: req.Name, CreditsPerHour: req.CreditsPerHour}
	if err := database.DB.Create(&skill).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Failed to create skill (duplicate name?)"})
	}

	return c.Status(fiber.StatusCreated).JSON(skill)
}

type GrantCreditsRequest struct {
	Amount int64 `json:"amount" validate:"required,min=1"`
}

// GrantCredits is how credits enter the system: an admin posts a grant
// entry onto the account's ledger. There is no payment gateway here.
func GrantCredits(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account id"})
	}

	var req GrantCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	wallet := services.NewWalletService(database.DB)
	entry, err := wallet.PostEntry(accountID, req.Amount, models.ReasonAdminGrant, nil)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(entry)
}

// AuditAccount re-derives the account's balance from the ledger and
// compares it with the cached counter.
func AuditAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account id"})
	}

	wallet := services.NewWalletService(database.DB)
	cached, derived, err := wallet.Audit(accountID)
	if err != nil && !errors.Is(err, services.ErrLedgerInconsistency) {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"account_id": accountID,
		"cached":     cached,
		"derived":    derived,
		"consistent": err == nil,
	})
}
