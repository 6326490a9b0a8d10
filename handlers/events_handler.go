package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/events"
)

// SessionEventsSocket subscribes the authenticated account to its session
// lifecycle events. Clients only listen; the read loop exists to detect
// the connection closing.
var SessionEventsSocket = websocket.New(func(conn *websocket.Conn) {
	token, ok := conn.Locals("user").(*jwt.Token)
	if !ok {
		conn.Close()
		return
	}
	claims := token.Claims.(jwt.MapClaims)
	accountID, err := uuid.Parse(claims["user_id"].(string))
	if err != nil {
		conn.Close()
		return
	}

	client := &events.Client{AccountID: accountID, Conn: conn}
	events.Register <- client
	defer func() { events.Unregister <- client }()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
})
