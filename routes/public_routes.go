package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
)

func PublicRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/sessions/available", handlers.ListAvailableSlots)
	api.Get("/skills", handlers.ListSkills)
}
