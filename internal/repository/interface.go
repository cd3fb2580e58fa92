package repository

import (
	"context"
	"errors"

	"github.com/john0isaac/fastroom/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNameTaken   = errors.New("room name already taken")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrTokenNotFound   = errors.New("refresh token not found")
)

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint) (*domain.User, error)
}

// TokenRepository persists refresh token hashes. Raw tokens are never stored.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeUserTokens(ctx context.Context, userID uint) error
}

// ChatRepository covers the hot path driven by websocket frames.
type ChatRepository interface {
	// EnsureRoomAndMembership creates the room and the caller's membership
	// rows if they do not exist yet, returning both.
	EnsureRoomAndMembership(ctx context.Context, roomName string, userID uint) (*domain.Room, *domain.RoomMember, error)
	GetRoomByName(ctx context.Context, name string) (*domain.Room, error)
	GetMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error)
	CreateMessage(ctx context.Context, msg *domain.Message) error
	// RecentMessages returns up to limit of the newest non-deleted messages
	// in chronological order.
	RecentMessages(ctx context.Context, roomID uint, limit int) ([]domain.HistoryMessage, error)
	// MessagesBefore pages backwards from beforeID, chronological order.
	MessagesBefore(ctx context.Context, roomID uint, beforeID int64, limit int) ([]domain.HistoryMessage, error)
}

// RoomRepository covers the HTTP management surface.
type RoomRepository interface {
	ListRooms(ctx context.Context, limit, offset int, ascending bool) ([]domain.Room, int64, error)
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoomByID(ctx context.Context, id uint) (*domain.Room, error)
	UpdateRoom(ctx context.Context, room *domain.Room) error
	DeleteRoom(ctx context.Context, id uint) error

	ListMembers(ctx context.Context, roomID uint, limit, offset int) ([]domain.MemberInfo, int64, error)
	AddMember(ctx context.Context, member *domain.RoomMember) error
	RemoveMember(ctx context.Context, roomID, userID uint) error
	UpdateMember(ctx context.Context, member *domain.RoomMember) error

	// ListMessages pages non-deleted messages newest first.
	ListMessages(ctx context.Context, roomID uint, limit, offset int) ([]domain.HistoryMessage, int64, error)
	GetMessage(ctx context.Context, roomID uint, messageID uint) (*domain.Message, error)
	UpdateMessage(ctx context.Context, msg *domain.Message) error
	// DeleteMessage marks the message deleted without removing the row.
	DeleteMessage(ctx context.Context, roomID uint, messageID uint) error
}

// Repository is the composed persistence surface backed by one database.
type Repository interface {
	UserRepository
	TokenRepository
	ChatRepository
	RoomRepository
}
