package api

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"smartcage-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans prediction records out to connected WebSocket clients.
// Slow clients miss records rather than stall the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[chan models.PredictionRecord]struct{}
	buffer  int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{clients: make(map[chan models.PredictionRecord]struct{}), buffer: buffer}
}

func (h *Hub) Name() string { return "websocket" }

// Save broadcasts the record without blocking
func (h *Hub) Save(_ context.Context, rec models.PredictionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- rec:
		default:
		}
	}
	return nil
}

func (h *Hub) subscribe() chan models.PredictionRecord {
	ch := make(chan models.PredictionRecord, h.buffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan models.PredictionRecord) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// LiveWebSocket streams every new prediction record to the client
func (h *Hub) LiveWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("API: websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		records := h.subscribe()
		defer h.unsubscribe(records)

		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-records:
				err := conn.WriteJSON(gin.H{
					"type": "prediction",
					"data": rec,
				})
				if err != nil {
					log.Printf("API: websocket write error: %v", err)
					return
				}
			}
		}
	}
}
