package service

import (
	"context"

	"github.com/john0isaac/fastroom/internal/hub"
)

// ChatService is the room protocol state machine. Each method handles one
// inbound frame type for one connection; protocol errors are delivered to
// the client as error frames, never by closing the socket.
type ChatService interface {
	// HandleConnected sends the post-auth greeting.
	HandleConnected(ctx context.Context, c *hub.Client)
	HandleJoin(ctx context.Context, c *hub.Client, room string)
	HandleLeave(ctx context.Context, c *hub.Client, room string)
	HandleChat(ctx context.Context, c *hub.Client, room, message string)
	HandleTyping(ctx context.Context, c *hub.Client, room string, isTyping bool)
	HandleHistoryMore(ctx context.Context, c *hub.Client, room string, beforeID int64)
	HandlePing(ctx context.Context, c *hub.Client)
	// HandleDisconnect leaves every joined room and announces departures.
	HandleDisconnect(ctx context.Context, c *hub.Client)
}
