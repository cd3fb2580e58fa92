package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/john0isaac/fastroom/internal/config"
	"github.com/john0isaac/fastroom/pkg/log"
)

// ErrSendBufferFull is returned when a client's outbound queue is saturated.
// The frame is dropped for that client only.
var ErrSendBufferFull = errors.New("client send buffer full")

// Client is one authenticated websocket connection. It is owned exclusively
// by the process that accepted it. ID is stable for the connection's
// lifetime and forms part of its presence record keys.
type Client struct {
	ID       string
	UserID   uint
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	cfg       config.WebSocketConfig
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. Conn may be nil in tests; only the
// pumps touch it.
func NewClient(conn *websocket.Conn, userID uint, username string, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		cfg:      cfg,
	}
}

// ReadPump reads frames from the socket and hands them to the handler, one
// at a time: per-connection frame processing is strictly sequential. It
// returns when the socket closes or errors.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the Send queue onto the socket and keeps the connection
// alive with protocol-level pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame marshals a frame and enqueues it without blocking.
func (c *Client) SendFrame(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw enqueues pre-serialized bytes without blocking.
func (c *Client) SendRaw(data []byte) error {
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// CloseSend closes the outbound queue, letting WritePump finish. Safe to
// call more than once.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}
