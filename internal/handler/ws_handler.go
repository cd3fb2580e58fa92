package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/john0isaac/fastroom/internal/auth"
	"github.com/john0isaac/fastroom/internal/config"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/hub"
	"github.com/john0isaac/fastroom/internal/service"
	"github.com/john0isaac/fastroom/pkg/log"
)

// closeCodeAuthFailed is sent when the upgrade succeeds but the supplied
// access token does not.
const closeCodeAuthFailed = 4400

// WSHandler upgrades websocket connections and dispatches protocol frames
// to the chat service. Frames for one connection are handled sequentially
// on its read loop.
type WSHandler struct {
	chat     service.ChatService
	authSvc  *auth.Service
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(chat service.ChatService, authSvc *auth.Service, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		chat:    chat,
		authSvc: authSvc,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket serves GET /ws?access_token=...
//
// Authentication happens after the upgrade so the client receives a proper
// close frame instead of a failed handshake.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := c.Request.Context()
	token := c.Query("access_token")
	user, err := h.authSvc.Authenticate(ctx, token)
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("websocket auth failed")
		errFrame, _ := json.Marshal(domain.NewErrorFrame(domain.ErrCodeBadRequest, "unauthorized"))
		conn.WriteMessage(websocket.TextMessage, errFrame)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCodeAuthFailed, "auth failed"))
		conn.Close()
		return
	}

	client := hub.NewClient(conn, user.ID, user.Username, h.cfg)

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUsername, user.Username).
		Msg("websocket connected")

	go client.WritePump()

	h.chat.HandleConnected(ctx, client)

	client.ReadPump(h.dispatch)

	h.chat.HandleDisconnect(ctx, client)
	client.CloseSend()

	l = log.Ctx(ctx)
	l.Debug().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUsername, user.Username).
		Msg("websocket disconnected")
}

// dispatch decodes one inbound frame and routes it by type. Malformed or
// unknown frames produce an error frame; the connection stays open.
func (h *WSHandler) dispatch(c *hub.Client, raw []byte) {
	ctx := log.WithLogger(context.Background(), log.L().With().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldUsername, c.Username).
		Logger())

	var base domain.BaseFrame
	if err := json.Unmarshal(raw, &base); err != nil {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid json"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoin:
		var frame domain.JoinFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Room == "" {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "room required"))
			return
		}
		h.chat.HandleJoin(ctx, c, frame.Room)

	case domain.MsgTypeLeave:
		var frame domain.LeaveFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Room == "" {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "room required"))
			return
		}
		h.chat.HandleLeave(ctx, c, frame.Room)

	case domain.MsgTypeChat:
		var frame domain.ChatFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Room == "" || frame.Message == "" {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid chat"))
			return
		}
		h.chat.HandleChat(ctx, c, frame.Room, frame.Message)

	case domain.MsgTypeTyping:
		var frame domain.TypingFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Room == "" {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid typing"))
			return
		}
		h.chat.HandleTyping(ctx, c, frame.Room, frame.IsTyping)

	case domain.MsgTypeHistoryMore:
		var frame domain.HistoryMoreFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Room == "" || frame.BeforeID <= 0 {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid history_more"))
			return
		}
		h.chat.HandleHistoryMore(ctx, c, frame.Room, frame.BeforeID)

	case domain.MsgTypePing:
		h.chat.HandlePing(ctx, c)

	default:
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeUnknownType, "unknown type"))
	}
}
