package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/yourusername/pdv-manager/internal/websocket"
)

// WSHandler attaches clients to the backup event stream
type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(hub *websocket.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth middleware already vetted the request; browsers cannot
			// set Authorization on WebSocket upgrades so origin checks
			// would only reject the token query fallback
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleBackupEvents upgrades the connection and streams progress events
func (h *WSHandler) HandleBackupEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	username, _ := c.Get("username")

	client := &websocket.Client{
		ID:       uuid.New().String()[:8],
		Username: toString(username),
		Conn:     conn,
		Send:     make(chan *websocket.Message, 64),
		Hub:      h.hub,
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func toString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
