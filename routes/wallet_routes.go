package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
	"github.com/mkalewa/skill_exchange/middleware"
)

func WalletRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	wallet := api.Group("/wallet", middleware.Protected())
	wallet.Get("/balance", handlers.GetMyBalance)
	wallet.Get("/ledger", handlers.GetMyLedger)
}
