package domain

import (
	"time"
)

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

// LoginRequest exchanges credentials for a token pair.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenPair is the auth response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Disabled bool    `json:"disabled"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Disabled: u.Disabled,
	}
}

// CreateRoomRequest creates a room; the creator becomes its first moderator.
type CreateRoomRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	IsPrivate bool   `json:"is_private"`
}

// UpdateRoomRequest renames a room or toggles visibility.
type UpdateRoomRequest struct {
	Name      *string `json:"name"`
	IsPrivate *bool   `json:"is_private"`
}

// RoomResponse is the public view of a room.
type RoomResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Room) ToResponse() RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		CreatedAt: r.CreatedAt,
	}
}

// MemberResponse is one room membership row with its moderation flags.
type MemberResponse struct {
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	IsModerator bool      `json:"is_moderator"`
	IsBanned    bool      `json:"is_banned"`
	IsMuted     bool      `json:"is_muted"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MessageResponse is one persisted message.
type MessageResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberUpdateRequest toggles a membership's moderation flags; nil fields
// are left unchanged.
type MemberUpdateRequest struct {
	IsModerator *bool `json:"is_moderator"`
	IsBanned    *bool `json:"is_banned"`
	IsMuted     *bool `json:"is_muted"`
}

// MessageUpdateRequest edits a message body.
type MessageUpdateRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

// Page wraps a paged collection.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// NewPage computes paging metadata for a slice of items.
func NewPage[T any](items []T, total, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Items: items, Total: total, Limit: limit, Offset: offset}
	if offset+limit < total {
		next := offset + limit
		p.HasMore = true
		p.NextOffset = &next
	}
	return p
}

// PresenceResponse is the HTTP presence snapshot for a room.
type PresenceResponse struct {
	RoomID uint     `json:"room_id"`
	Room   string   `json:"room"`
	Users  []string `json:"users"`
	Count  int      `json:"count"`
}
