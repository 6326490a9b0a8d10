package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/database"
	"github.com/mkalewa/skill_exchange/services"
)

func GetMyBalance(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	accountID, _ := uuid.Parse(claims["user_id"].(string))

	wallet := services.NewWalletService(database.DB)
	balance, err := wallet.Balance(accountID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"account_id": accountID, "balance": balance})
}

func GetMyLedger(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	accountID, _ := uuid.Parse(claims["user_id"].(string))

	wallet := services.NewWalletService(database.DB)
	entries, err := wallet.Entries(accountID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(entries)
}
