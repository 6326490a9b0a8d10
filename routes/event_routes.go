package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/mkalewa/skill_exchange/handlers"
	"github.com/mkalewa/skill_exchange/middleware"
)

func EventRoutes(app *fiber.App) {
	app.Use("/api/v1/events/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/api/v1/events/ws", middleware.Protected(), handlers.SessionEventsSocket)
}
