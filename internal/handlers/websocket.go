package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peerline/signaling/internal/models"
	"github.com/peerline/signaling/internal/relay"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// WebSocketHandler upgrades signaling connections and binds each one to a
// session fed into the relay.
type WebSocketHandler struct {
	relay *relay.Relay
}

func NewWebSocketHandler(r *relay.Relay) *WebSocketHandler {
	return &WebSocketHandler{relay: r}
}

// HandleSignaling handles WebSocket connections for signaling. Membership is
// established by the first join-room message, not by the URL.
func (h *WebSocketHandler) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	sess := &wsSession{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	log.Printf("Peer %s connected", sess.id)

	go sess.writePump()
	go sess.readPump(h.relay)
}

// wsSession is one client's signaling connection. It satisfies
// rooms.Session; delivery goes through a buffered channel drained by a
// single writer, which preserves per-sender FIFO toward this client.
type wsSession struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) Deliver(msg models.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	select {
	case s.send <- data:
	default:
		log.Printf("Failed to send message to peer %s, buffer full", s.id)
	}
}

func (s *wsSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSession) readPump(r *relay.Relay) {
	defer func() {
		r.HandleDisconnect(s)
		s.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to parse message from %s: %v", s.id, err)
			continue
		}
		r.HandleMessage(s, msg)
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message to %s: %v", s.id, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
