package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/john0isaac/fastroom/internal/audit"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/hub"
	"github.com/john0isaac/fastroom/internal/presence"
	"github.com/john0isaac/fastroom/internal/repository"
	"github.com/john0isaac/fastroom/pkg/log"
	"github.com/john0isaac/fastroom/pkg/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// RoomHandler serves the room administration API. Moderation changes are
// fanned out to room members over the same broadcast path the chat protocol
// uses, so every process sees them.
type RoomHandler struct {
	repo  repository.Repository
	hub   *hub.Hub
	store presence.Store
}

func NewRoomHandler(repo repository.Repository, h *hub.Hub, store presence.Store) *RoomHandler {
	return &RoomHandler{repo: repo, hub: h, store: store}
}

// List serves GET /rooms.
func (h *RoomHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	ascending := c.DefaultQuery("order", "asc") != "desc"

	rooms, total, err := h.repo.ListRooms(c.Request.Context(), limit, offset, ascending)
	if err != nil {
		response.InternalError(c, "failed to list rooms")
		return
	}

	items := make([]domain.RoomResponse, len(rooms))
	for i := range rooms {
		items[i] = rooms[i].ToResponse()
	}
	response.Success(c, domain.NewPage(items, int(total), limit, offset))
}

// Create serves POST /rooms. The creator becomes the room's first moderator.
func (h *RoomHandler) Create(c *gin.Context) {
	user := currentUser(c)
	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	room := &domain.Room{Name: req.Name, IsPrivate: req.IsPrivate}
	if err := h.repo.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomNameTaken) {
			response.Conflict(c, "room name already exists")
			return
		}
		response.InternalError(c, "failed to create room")
		return
	}

	member := &domain.RoomMember{RoomID: room.ID, UserID: user.ID, IsModerator: true}
	if err := h.repo.AddMember(ctx, member); err != nil {
		response.InternalError(c, "failed to add creator membership")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionCreateRoom, user.ID, room.Name, "room created")
	response.Created(c, room.ToResponse())
}

// Get serves GET /rooms/:id.
func (h *RoomHandler) Get(c *gin.Context) {
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	response.Success(c, room.ToResponse())
}

// GetByName serves GET /rooms/by-name/:name.
func (h *RoomHandler) GetByName(c *gin.Context) {
	room, err := h.repo.GetRoomByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.NotFound(c, "room not found")
		return
	}
	response.Success(c, room.ToResponse())
}

// Update serves PATCH /rooms/:id. Moderators only.
func (h *RoomHandler) Update(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, room.ID, user.ID) {
		return
	}

	var req domain.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	if req.Name != nil && *req.Name != room.Name {
		if _, err := h.repo.GetRoomByName(ctx, *req.Name); err == nil {
			response.Conflict(c, "room name already exists")
			return
		}
		room.Name = *req.Name
	}
	if req.IsPrivate != nil {
		room.IsPrivate = *req.IsPrivate
	}

	if err := h.repo.UpdateRoom(ctx, room); err != nil {
		response.InternalError(c, "failed to update room")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionUpdateRoom, user.ID, room.Name, "room updated")
	response.Success(c, room.ToResponse())
}

// Delete serves DELETE /rooms/:id. Moderators only.
func (h *RoomHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, room.ID, user.ID) {
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.DeleteRoom(ctx, room.ID); err != nil {
		response.InternalError(c, "failed to delete room")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionDeleteRoom, user.ID, room.Name, "room deleted")
	response.NoContent(c)
}

// Join serves POST /rooms/:id/members: the caller joins the room.
func (h *RoomHandler) Join(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repo.GetMember(ctx, room.ID, user.ID); err == nil {
		response.Conflict(c, "already a member")
		return
	}

	member := &domain.RoomMember{RoomID: room.ID, UserID: user.ID}
	if err := h.repo.AddMember(ctx, member); err != nil {
		response.InternalError(c, "failed to join room")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, user.ID, room.Name, "joined room")
	response.Created(c, domain.MemberResponse{
		UserID:   user.ID,
		Username: user.Username,
		JoinedAt: member.JoinedAt,
	})
}

// ListMembers serves GET /rooms/:id/members.
func (h *RoomHandler) ListMembers(c *gin.Context) {
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	members, total, err := h.repo.ListMembers(c.Request.Context(), room.ID, limit, offset)
	if err != nil {
		response.InternalError(c, "failed to list members")
		return
	}

	items := make([]domain.MemberResponse, len(members))
	for i, m := range members {
		items[i] = domain.MemberResponse{
			UserID:      m.UserID,
			Username:    m.Username,
			IsModerator: m.IsModerator,
			IsBanned:    m.IsBanned,
			IsMuted:     m.IsMuted,
			JoinedAt:    m.JoinedAt,
		}
	}
	response.Success(c, domain.NewPage(items, int(total), limit, offset))
}

// RemoveMember serves DELETE /rooms/:id/members/:user_id. A member can
// remove itself; removing others requires moderator.
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	targetID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	if targetID != user.ID && !h.requireModerator(c, room.ID, user.ID) {
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.RemoveMember(ctx, room.ID, targetID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			response.NotFound(c, "member not found")
			return
		}
		response.InternalError(c, "failed to remove member")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionRemoveMember, user.ID, room.Name, "member removed")
	response.NoContent(c)
}

// UpdateMember serves PATCH /rooms/:id/members/:user_id. Moderators only.
// Flag changes are announced to the room as a member_update frame.
func (h *RoomHandler) UpdateMember(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	targetID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	if !h.requireModerator(c, room.ID, user.ID) {
		return
	}

	var req domain.MemberUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	member, err := h.repo.GetMember(ctx, room.ID, targetID)
	if err != nil {
		response.NotFound(c, "member not found")
		return
	}

	if req.IsModerator != nil {
		member.IsModerator = *req.IsModerator
	}
	if req.IsBanned != nil {
		member.IsBanned = *req.IsBanned
	}
	if req.IsMuted != nil {
		member.IsMuted = *req.IsMuted
	}

	if err := h.repo.UpdateMember(ctx, member); err != nil {
		response.InternalError(c, "failed to update member")
		return
	}

	username := ""
	if target, err := h.repo.GetUserByID(ctx, targetID); err == nil {
		username = target.Username
	}

	h.broadcast(c, room.Name, domain.NewMemberUpdateFrame(room.Name, member, username))
	audit.LogWithDetail(ctx, audit.ActionUpdateMember, user.ID, room.Name, "member flags updated")

	response.Success(c, domain.MemberResponse{
		UserID:      member.UserID,
		Username:    username,
		IsModerator: member.IsModerator,
		IsBanned:    member.IsBanned,
		IsMuted:     member.IsMuted,
		JoinedAt:    member.JoinedAt,
	})
}

// ListMessages serves GET /rooms/:id/messages, newest first.
func (h *RoomHandler) ListMessages(c *gin.Context) {
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	msgs, total, err := h.repo.ListMessages(c.Request.Context(), room.ID, limit, offset)
	if err != nil {
		response.InternalError(c, "failed to list messages")
		return
	}

	items := make([]domain.MessageResponse, len(msgs))
	for i, m := range msgs {
		items[i] = domain.MessageResponse{
			ID:        m.ID,
			Username:  m.Username,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	response.Success(c, domain.NewPage(items, int(total), limit, offset))
}

// UpdateMessage serves PATCH /rooms/:id/messages/:message_id. Author or
// moderator. Edits are announced as message_updated frames.
func (h *RoomHandler) UpdateMessage(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	messageID, ok := uintParam(c, "message_id")
	if !ok {
		return
	}

	var req domain.MessageUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	msg, err := h.repo.GetMessage(ctx, room.ID, messageID)
	if err != nil {
		response.NotFound(c, "message not found")
		return
	}
	if !h.canModifyMessage(c, room.ID, user.ID, msg) {
		return
	}

	msg.Content = req.Content
	if err := h.repo.UpdateMessage(ctx, msg); err != nil {
		response.InternalError(c, "failed to update message")
		return
	}

	h.broadcast(c, room.Name, domain.NewMessageUpdatedFrame(room.Name, msg.ID, msg.Content))
	audit.LogWithDetail(ctx, audit.ActionEditMessage, user.ID, room.Name, "message edited")

	response.Success(c, domain.MessageResponse{
		ID:        msg.ID,
		Username:  user.Username,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
}

// DeleteMessage serves DELETE /rooms/:id/messages/:message_id. Author or
// moderator. Deletions are announced as message_deleted frames.
func (h *RoomHandler) DeleteMessage(c *gin.Context) {
	user := currentUser(c)
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}
	messageID, ok := uintParam(c, "message_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.repo.GetMessage(ctx, room.ID, messageID)
	if err != nil {
		response.NotFound(c, "message not found")
		return
	}
	if !h.canModifyMessage(c, room.ID, user.ID, msg) {
		return
	}

	if err := h.repo.DeleteMessage(ctx, room.ID, messageID); err != nil {
		response.InternalError(c, "failed to delete message")
		return
	}

	h.broadcast(c, room.Name, domain.NewMessageDeletedFrame(room.Name, messageID))
	audit.LogWithDetail(ctx, audit.ActionDeleteMessage, user.ID, room.Name, "message deleted")
	response.NoContent(c)
}

// Presence serves GET /rooms/:id/presence: the live distinct-user snapshot
// from the presence store.
func (h *RoomHandler) Presence(c *gin.Context) {
	room, ok := h.roomFromPath(c)
	if !ok {
		return
	}

	users, err := h.store.ListUsers(c.Request.Context(), room.Name)
	if err != nil {
		response.InternalError(c, "failed to read presence")
		return
	}
	response.Success(c, domain.PresenceResponse{
		RoomID: room.ID,
		Room:   room.Name,
		Users:  users,
		Count:  len(users),
	})
}

// broadcast delivers a frame to local room members and publishes it for
// other processes.
func (h *RoomHandler) broadcast(c *gin.Context, room string, frame any) {
	ctx := c.Request.Context()
	h.hub.BroadcastLocal(room, frame, nil)
	if err := h.hub.Publish(ctx, room, frame); err != nil {
		l := log.Ctx(ctx)
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("bus publish failed")
	}
}

func (h *RoomHandler) roomFromPath(c *gin.Context) (*domain.Room, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	room, err := h.repo.GetRoomByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "room not found")
		return nil, false
	}
	return room, true
}

func (h *RoomHandler) requireModerator(c *gin.Context, roomID, userID uint) bool {
	member, err := h.repo.GetMember(c.Request.Context(), roomID, userID)
	if err != nil || !member.IsModerator {
		response.Forbidden(c, "moderator required")
		return false
	}
	return true
}

func (h *RoomHandler) canModifyMessage(c *gin.Context, roomID, userID uint, msg *domain.Message) bool {
	if msg.UserID != nil && *msg.UserID == userID {
		return true
	}
	return h.requireModerator(c, roomID, userID)
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
