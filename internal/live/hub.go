// Package live pushes orchestrator events to dashboard WebSocket clients.
package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkvision-backend/internal/parking"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans events out to every connected client.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
}

// NewHub creates an idle hub. Call Start to run it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is cancelled, then closes all clients.
func (h *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			log.Println("Live hub shutting down.")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("WebSocket client connected. Total: %d", n)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			var failed []*websocket.Conn
			h.mutex.RLock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("Error writing to WebSocket client: %v", err)
					failed = append(failed, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range failed {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
		log.Printf("WebSocket client disconnected. Total: %d", len(h.clients))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Notify implements parking.Notifier. Events are dropped when the hub is
// backed up.
func (h *Hub) Notify(ev parking.Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling live event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		log.Println("Live broadcast channel is full, dropping event")
	}
}

// Serve upgrades the request and keeps the connection registered until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()
}
