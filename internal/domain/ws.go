package domain

import (
	"time"
)

// WebSocket message types from client.
const (
	MsgTypeJoin        = "join"
	MsgTypeLeave       = "leave"
	MsgTypeChat        = "chat"
	MsgTypeTyping      = "typing"
	MsgTypeHistoryMore = "history_more"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeJoined         = "joined"
	MsgTypePresenceState  = "presence_state"
	MsgTypePresenceDiff   = "presence_diff"
	MsgTypeSystem         = "system"
	MsgTypeHistory        = "history"
	MsgTypeMessageUpdated = "message_updated"
	MsgTypeMessageDeleted = "message_deleted"
	MsgTypeMemberUpdate   = "member_update"
	MsgTypePong           = "pong"
	MsgTypeError          = "error"
)

// Error codes carried in error frames.
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeUnknownType = "UNKNOWN_TYPE"
	ErrCodeNotInRoom   = "NOT_IN_ROOM"
	ErrCodeNotAMember  = "NOT_A_MEMBER"
	ErrCodeBanned      = "BANNED"
	ErrCodeMuted       = "MUTED"
	ErrCodeRoomMissing = "ROOM_MISSING"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// BaseFrame carries only the discriminator; the handler re-unmarshals the
// raw bytes into the concrete frame once the type is known.
type BaseFrame struct {
	Type string `json:"type"`
}

// Client -> server frames.

type JoinFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type LeaveFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type ChatFrame struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

type TypingFrame struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type HistoryMoreFrame struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	BeforeID int64  `json:"before_id"`
}

// Server -> client frames. Every frame carries ts; frames that travel over
// the broadcast bus additionally carry the origin-process tag, which the bus
// layer adds on publish and strips before local delivery.

type JoinedFrame struct {
	Type string    `json:"type"`
	Room string    `json:"room"`
	TS   time.Time `json:"ts"`
}

type PresenceStateFrame struct {
	Type  string    `json:"type"`
	Room  string    `json:"room"`
	Users []string  `json:"users"`
	TS    time.Time `json:"ts"`
}

type PresenceDiffFrame struct {
	Type  string    `json:"type"`
	Room  string    `json:"room"`
	Join  []string  `json:"join"`
	Leave []string  `json:"leave"`
	TS    time.Time `json:"ts"`
}

type ChatOutFrame struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	MessageID uint      `json:"message_id,omitempty"`
	TS        time.Time `json:"ts"`
}

type SystemFrame struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
	// Heartbeat interval hint (seconds) sent in the connection greeting so
	// clients can adapt their ping schedule.
	HeartbeatInterval int       `json:"heartbeatInterval,omitempty"`
	TS                time.Time `json:"ts"`
}

type HistoryFrame struct {
	Type     string         `json:"type"`
	Room     string         `json:"room"`
	Messages []ChatOutFrame `json:"messages"`
	TS       time.Time      `json:"ts"`
}

type HistoryMoreOutFrame struct {
	Type     string         `json:"type"`
	Room     string         `json:"room"`
	Messages []ChatOutFrame `json:"messages"`
	More     bool           `json:"more"`
	TS       time.Time      `json:"ts"`
}

type MessageUpdatedFrame struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	MessageID uint      `json:"message_id"`
	Content   string    `json:"content"`
	TS        time.Time `json:"ts"`
}

type MessageDeletedFrame struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	MessageID uint      `json:"message_id"`
	TS        time.Time `json:"ts"`
}

type MemberUpdateFrame struct {
	Type        string    `json:"type"`
	Room        string    `json:"room"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	IsModerator bool      `json:"is_moderator"`
	IsBanned    bool      `json:"is_banned"`
	IsMuted     bool      `json:"is_muted"`
	TS          time.Time `json:"ts"`
}

type PongFrame struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
}

type ErrorFrame struct {
	Type    string    `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	TS      time.Time `json:"ts"`
}

func now() time.Time { return time.Now().UTC() }

func NewJoinedFrame(room string) *JoinedFrame {
	return &JoinedFrame{Type: MsgTypeJoined, Room: room, TS: now()}
}

func NewPresenceStateFrame(room string, users []string) *PresenceStateFrame {
	if users == nil {
		users = []string{}
	}
	return &PresenceStateFrame{Type: MsgTypePresenceState, Room: room, Users: users, TS: now()}
}

func NewPresenceJoinFrame(room, username string) *PresenceDiffFrame {
	return &PresenceDiffFrame{Type: MsgTypePresenceDiff, Room: room, Join: []string{username}, Leave: []string{}, TS: now()}
}

func NewPresenceLeaveFrame(room, username string) *PresenceDiffFrame {
	return &PresenceDiffFrame{Type: MsgTypePresenceDiff, Room: room, Join: []string{}, Leave: []string{username}, TS: now()}
}

func NewChatOutFrame(room, user, message string, messageID uint, ts time.Time) *ChatOutFrame {
	if ts.IsZero() {
		ts = now()
	}
	return &ChatOutFrame{Type: MsgTypeChat, Room: room, User: user, Message: message, MessageID: messageID, TS: ts}
}

func NewTypingOutFrame(room, user string, isTyping bool) map[string]interface{} {
	// Typing frames echo the inbound isTyping casing.
	return map[string]interface{}{
		"type":     MsgTypeTyping,
		"room":     room,
		"user":     user,
		"isTyping": isTyping,
		"ts":       now(),
	}
}

func NewSystemFrame(room, message string) *SystemFrame {
	return &SystemFrame{Type: MsgTypeSystem, Room: room, Message: message, TS: now()}
}

func NewHistoryFrame(room string, messages []ChatOutFrame) *HistoryFrame {
	if messages == nil {
		messages = []ChatOutFrame{}
	}
	return &HistoryFrame{Type: MsgTypeHistory, Room: room, Messages: messages, TS: now()}
}

func NewHistoryMoreOutFrame(room string, messages []ChatOutFrame, more bool) *HistoryMoreOutFrame {
	if messages == nil {
		messages = []ChatOutFrame{}
	}
	return &HistoryMoreOutFrame{Type: MsgTypeHistoryMore, Room: room, Messages: messages, More: more, TS: now()}
}

func NewMessageUpdatedFrame(room string, messageID uint, content string) *MessageUpdatedFrame {
	return &MessageUpdatedFrame{Type: MsgTypeMessageUpdated, Room: room, MessageID: messageID, Content: content, TS: now()}
}

func NewMessageDeletedFrame(room string, messageID uint) *MessageDeletedFrame {
	return &MessageDeletedFrame{Type: MsgTypeMessageDeleted, Room: room, MessageID: messageID, TS: now()}
}

func NewMemberUpdateFrame(room string, m *RoomMember, username string) *MemberUpdateFrame {
	return &MemberUpdateFrame{
		Type:        MsgTypeMemberUpdate,
		Room:        room,
		UserID:      m.UserID,
		Username:    username,
		IsModerator: m.IsModerator,
		IsBanned:    m.IsBanned,
		IsMuted:     m.IsMuted,
		TS:          now(),
	}
}

func NewPongFrame() *PongFrame {
	return &PongFrame{Type: MsgTypePong, TS: now()}
}

func NewErrorFrame(code, message string) *ErrorFrame {
	return &ErrorFrame{Type: MsgTypeError, Code: code, Message: message, TS: now()}
}
