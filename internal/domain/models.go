package domain

import (
	"time"
)

// User is the GORM model for the users table.
type User struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	Username       string  `gorm:"type:varchar(50);uniqueIndex;not null"`
	Email          *string `gorm:"type:varchar(255);uniqueIndex"`
	FullName       *string `gorm:"type:varchar(255)"`
	HashedPassword string  `gorm:"type:varchar(255);not null"`
	Disabled       bool    `gorm:"not null;default:false"`
}

func (User) TableName() string { return "users" }

// Room is the GORM model for the rooms table.
type Room struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	IsPrivate bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Room) TableName() string { return "rooms" }

// RoomMember is the GORM model for the room_members table. One row per
// (room, user); moderation flags live here.
type RoomMember struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	RoomID      uint      `gorm:"index;not null"`
	UserID      uint      `gorm:"index;not null"`
	IsModerator bool      `gorm:"not null;default:false"`
	IsBanned    bool      `gorm:"not null;default:false"`
	IsMuted     bool      `gorm:"not null;default:false"`
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

func (RoomMember) TableName() string { return "room_members" }

// Message is the GORM model for the messages table. UserID is nullable so
// messages survive user deletion.
type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RoomID    uint      `gorm:"index;not null"`
	UserID    *uint     `gorm:"index"`
	Content   string    `gorm:"type:text;not null"`
	IsDeleted bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string { return "messages" }

// RefreshToken stores a hashed, revocable refresh token.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"not null;default:false;index"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// HistoryMessage is a message row joined with its author's username, as
// delivered in history frames and message pages.
type HistoryMessage struct {
	ID        uint
	Username  string // empty if the author was deleted
	Content   string
	CreatedAt time.Time
}

// MemberInfo is a membership row joined with the member's username.
type MemberInfo struct {
	UserID      uint
	Username    string
	IsModerator bool
	IsBanned    bool
	IsMuted     bool
	JoinedAt    time.Time
}
