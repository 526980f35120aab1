package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients have nothing to say; anything bigger than a close frame is noise.
	maxMessageSize = 4 << 10

	sendBufSize = 16
)

// Client is one desktop session.
type Client struct {
	UserID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	log    zerolog.Logger
}

// NewClient wraps a WebSocket connection.
func NewClient(userID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBufSize),
		log:    hub.log,
	}
}

// Run starts read and write pumps. Blocks until the connection closes.
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump() // blocks
	c.hub.Unregister(c)
}

// ─────────────────────────────────────────────
// Read pump: Client → Server
//
// The channel is push-only. Reading keeps the
// deadline fresh via pongs and notices closes.
// ─────────────────────────────────────────────

func (c *Client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Str("user_id", c.UserID).Msg("read error")
			}
			return
		}
	}
}

// ─────────────────────────────────────────────
// Write pump: Server → Client
// ─────────────────────────────────────────────

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per frame.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
