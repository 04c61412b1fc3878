package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"douniyaconnect/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

type Client struct {
	Username string
	conn     *websocket.Conn
	send     chan domain.ChatNotification

	closeOnce sync.Once
}

func NewClient(username string, conn *websocket.Conn) *Client {
	return &Client{
		Username: username,
		conn:     conn,
		send:     make(chan domain.ChatNotification, sendBuffer),
	}
}

// enqueue never blocks; a full buffer drops the event.
func (c *Client) enqueue(event domain.ChatNotification) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WritePump drains the send buffer onto the connection and keeps the
// connection alive with pings. Runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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

// ReadPump consumes inbound frames until the connection drops, handing each
// decoded frame to handle. The pong handler feeds the keepalive deadline.
func (c *Client) ReadPump(handle func(ClientFrame)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		handle(frame)
	}
}

// ClientFrame is what a connected client may send upstream: topic
// subscription management and typing indicators.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
}

const (
	FrameSubscribe   = "SUBSCRIBE"
	FrameUnsubscribe = "UNSUBSCRIBE"
	FrameTyping      = "TYPING"
	FrameStopTyping  = "STOP_TYPING"
)
