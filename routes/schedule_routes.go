package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
	"github.com/mkalewa/skill_exchange/middleware"
)

func ScheduleRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	schedule := api.Group("/schedule", middleware.Protected())
	schedule.Post("/rules", handlers.CreateAvailabilityRule)
	schedule.Get("/rules", handlers.GetMyAvailabilityRules)
	schedule.Delete("/rules/:ruleId", handlers.DeleteAvailabilityRule)
}
