package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
	"github.com/mkalewa/skill_exchange/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Post("/accounts", handlers.CreateAccount)
	admin.Post("/skills", handlers.CreateSkill)
	admin.Post("/accounts/:accountId/grant", handlers.GrantCredits)
	admin.Get("/accounts/:accountId/audit", handlers.AuditAccount)
}
