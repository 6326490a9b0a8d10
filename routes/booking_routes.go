package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
	"github.com/mkalewa/skill_exchange/middleware"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	sessions := api.Group("/sessions", middleware.Protected())
	sessions.Get("/me", handlers.GetMySessions)
	sessions.Post("/book", handlers.BookSession)
	sessions.Post("/:sessionId/cancel", handlers.CancelSession)
	sessions.Put("/:sessionId/reschedule", handlers.RescheduleSession)
	sessions.Post("/:sessionId/complete", handlers.CompleteSession)
	sessions.Post("/:sessionId/confirm-join", handlers.ConfirmJoin)

	expert := api.Group("/expert", middleware.Protected())
	expert.Get("/sessions", handlers.GetMyExpertSessions)
}
