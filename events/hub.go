package events

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/mkalewa/skill_exchange/models"
)

// SessionEvent is what the booking engine emits on every lifecycle
// transition. Consumers (notification, badge, review services, clients)
// subscribe over websocket; the engine never calls them directly.
type SessionEvent struct {
	Type    string          `json:"type"`
	Session *models.Session `json:"session"`
}

const (
	SessionUpcoming    = "session.upcoming"
	SessionCompleted   = "session.completed"
	SessionCancelled   = "session.cancelled"
	SessionNoShow      = "session.no_show"
	SessionRescheduled = "session.rescheduled"
)

type Client struct {
	AccountID uuid.UUID
	Conn      *websocket.Conn
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan SessionEvent, 64)

// Publish hands an event to the hub without ever blocking the booking
// path. If nobody is draining the hub the event is dropped and logged.
func Publish(evt SessionEvent) {
	select {
	case Broadcast <- evt:
	default:
		log.Printf("events: dropped %s for session %s", evt.Type, evt.Session.ID)
	}
}

// RunHub fans session events out to the two parties of the affected
// session. Connections that fail to write are evicted.
func RunHub() {
	for {
		select {
		case client := <-Register:
			clientsMu.Lock()
			clients[client.AccountID] = client.Conn
			clientsMu.Unlock()
			log.Printf("events: client registered: %s", client.AccountID)

		case client := <-Unregister:
			clientsMu.Lock()
			if conn, ok := clients[client.AccountID]; ok && conn == client.Conn {
				delete(clients, client.AccountID)
			}
			clientsMu.Unlock()
			log.Printf("events: client unregistered: %s", client.AccountID)

		case evt := <-Broadcast:
			if evt.Session == nil {
				continue
			}
			deliver(evt, evt.Session.LearnerID)
			deliver(evt, evt.Session.ExpertID)
		}
	}
}

func deliver(evt SessionEvent, accountID uuid.UUID) {
	clientsMu.RLock()
	conn, ok := clients[accountID]
	clientsMu.RUnlock()
	if !ok {
		return
	}

	if err := conn.WriteJSON(evt); err != nil {
		log.Printf("events: write to %s failed: %v", accountID, err)
		conn.Close()
		clientsMu.Lock()
		if cur, ok := clients[accountID]; ok && cur == conn {
			delete(clients, accountID)
		}
		clientsMu.Unlock()
	}
}
