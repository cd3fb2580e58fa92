package service

import (
	"context"
	"fmt"
	"time"

	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/hub"
	"github.com/john0isaac/fastroom/internal/kafka"
	"github.com/john0isaac/fastroom/internal/presence"
	"github.com/john0isaac/fastroom/internal/repository"
	"github.com/john0isaac/fastroom/pkg/log"
)

type chatService struct {
	hub          *hub.Hub
	repo         repository.ChatRepository
	store        presence.Store
	archive      kafka.ArchiveProducer
	serverID     string
	historyLimit int
	hbInterval   time.Duration
}

// NewChatService wires the protocol handler. archive may be a NoopProducer
// when the archive topic is disabled.
func NewChatService(h *hub.Hub, repo repository.ChatRepository, store presence.Store, archive kafka.ArchiveProducer, serverID string, historyLimit int, hbInterval time.Duration) ChatService {
	return &chatService{
		hub:          h,
		repo:         repo,
		store:        store,
		archive:      archive,
		serverID:     serverID,
		historyLimit: historyLimit,
		hbInterval:   hbInterval,
	}
}

func (s *chatService) HandleConnected(ctx context.Context, c *hub.Client) {
	greeting := domain.NewSystemFrame("", fmt.Sprintf("connected as %s", c.Username))
	greeting.HeartbeatInterval = int(s.hbInterval.Seconds())
	s.send(c, greeting)
}

// HandleJoin runs the full join sequence: persist room and membership, join
// the registry, then deliver joined, presence_state and history to the
// joining socket in that order. If the user just appeared in the room for
// the first time cluster-wide, peers get a presence_diff and a system line.
func (s *chatService) HandleJoin(ctx context.Context, c *hub.Client, room string) {
	l := log.Ctx(ctx)

	dbRoom, _, err := s.repo.EnsureRoomAndMembership(ctx, room, c.UserID)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("failed to ensure room and membership")
		s.sendError(c, domain.ErrCodeInternal, "join failed")
		return
	}

	firstGlobal := s.hub.Join(ctx, room, c)

	s.send(c, domain.NewJoinedFrame(room))

	users, err := s.store.ListUsers(ctx, room)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("presence list failed")
		users = []string{c.Username}
	}
	s.send(c, domain.NewPresenceStateFrame(room, users))

	history, err := s.repo.RecentMessages(ctx, dbRoom.ID, s.historyLimit)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("history fetch failed")
		history = nil
	}
	s.send(c, domain.NewHistoryFrame(room, historyToFrames(room, history)))

	if firstGlobal {
		diff := domain.NewPresenceJoinFrame(room, c.Username)
		s.hub.BroadcastLocal(room, diff, c)
		s.publish(ctx, room, diff)

		sys := domain.NewSystemFrame(room, fmt.Sprintf("%s joined", c.Username))
		s.hub.BroadcastLocal(room, sys, c)
		s.publish(ctx, room, sys)
	}
}

func (s *chatService) HandleLeave(ctx context.Context, c *hub.Client, room string) {
	if !s.hub.IsMember(c, room) {
		return
	}
	removed, username := s.hub.Leave(ctx, room, c)
	if removed && username != "" {
		s.announceDeparture(ctx, room, username)
	}
}

func (s *chatService) HandleChat(ctx context.Context, c *hub.Client, room, message string) {
	l := log.Ctx(ctx)

	if !s.hub.IsMember(c, room) {
		s.sendError(c, domain.ErrCodeNotInRoom, "not in room")
		return
	}

	dbRoom, err := s.repo.GetRoomByName(ctx, room)
	if err != nil {
		s.sendError(c, domain.ErrCodeRoomMissing, "room missing")
		return
	}
	member, err := s.repo.GetMember(ctx, dbRoom.ID, c.UserID)
	if err != nil {
		s.sendError(c, domain.ErrCodeNotAMember, "not a member")
		return
	}
	if member.IsBanned {
		s.sendError(c, domain.ErrCodeBanned, "banned")
		return
	}
	if member.IsMuted {
		s.sendError(c, domain.ErrCodeMuted, "muted")
		return
	}

	userID := c.UserID
	msg := &domain.Message{RoomID: dbRoom.ID, UserID: &userID, Content: message}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("failed to persist message")
		s.sendError(c, domain.ErrCodeInternal, "message not saved")
		return
	}

	out := domain.NewChatOutFrame(room, c.Username, message, msg.ID, msg.CreatedAt)
	// Sender gets its own message back through the local broadcast.
	s.hub.BroadcastLocal(room, out, nil)
	s.publish(ctx, room, out)

	if err := s.archive.ProduceMessage(ctx, &kafka.ArchiveMessage{
		MessageID: msg.ID,
		Room:      room,
		Username:  c.Username,
		Content:   message,
		CreatedAt: msg.CreatedAt,
		ServerID:  s.serverID,
	}); err != nil {
		l.Warn().Str(log.FieldRoom, room).Err(err).Msg("archive produce failed")
	}
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, room string, isTyping bool) {
	if !s.hub.IsMember(c, room) {
		s.sendError(c, domain.ErrCodeNotInRoom, "not in room")
		return
	}
	frame := domain.NewTypingOutFrame(room, c.Username, isTyping)
	s.hub.BroadcastLocal(room, frame, nil)
	s.publish(ctx, room, frame)
}

func (s *chatService) HandleHistoryMore(ctx context.Context, c *hub.Client, room string, beforeID int64) {
	l := log.Ctx(ctx)

	if !s.hub.IsMember(c, room) {
		s.sendError(c, domain.ErrCodeNotInRoom, "not in room")
		return
	}
	dbRoom, err := s.repo.GetRoomByName(ctx, room)
	if err != nil {
		s.sendError(c, domain.ErrCodeRoomMissing, "room missing")
		return
	}

	older, err := s.repo.MessagesBefore(ctx, dbRoom.ID, beforeID, s.historyLimit)
	if err != nil {
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("history page fetch failed")
		s.sendError(c, domain.ErrCodeInternal, "history fetch failed")
		return
	}

	more := len(older) == s.historyLimit
	s.send(c, domain.NewHistoryMoreOutFrame(room, historyToFrames(room, older), more))
}

func (s *chatService) HandlePing(ctx context.Context, c *hub.Client) {
	s.send(c, domain.NewPongFrame())
}

// HandleDisconnect tears down every membership of the connection and
// announces each room the user globally vanished from, exactly as an
// explicit leave would. Peers never wait for heartbeat expiry.
func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	for _, dep := range s.hub.LeaveAll(ctx, c) {
		s.announceDeparture(ctx, dep.Room, dep.Username)
	}
}

func (s *chatService) announceDeparture(ctx context.Context, room, username string) {
	diff := domain.NewPresenceLeaveFrame(room, username)
	s.hub.BroadcastLocal(room, diff, nil)
	s.publish(ctx, room, diff)

	sys := domain.NewSystemFrame(room, fmt.Sprintf("%s left", username))
	s.hub.BroadcastLocal(room, sys, nil)
	s.publish(ctx, room, sys)
}

func (s *chatService) publish(ctx context.Context, room string, frame any) {
	if err := s.hub.Publish(ctx, room, frame); err != nil {
		l := log.Ctx(ctx)
		l.Error().Str(log.FieldRoom, room).Err(err).Msg("bus publish failed")
	}
}

func (s *chatService) send(c *hub.Client, frame any) {
	if err := c.SendFrame(frame); err != nil {
		l := log.L()
		l.Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("send failed")
	}
}

func (s *chatService) sendError(c *hub.Client, code, message string) {
	s.send(c, domain.NewErrorFrame(code, message))
}

func historyToFrames(room string, msgs []domain.HistoryMessage) []domain.ChatOutFrame {
	frames := make([]domain.ChatOutFrame, 0, len(msgs))
	for _, m := range msgs {
		frames = append(frames, *domain.NewChatOutFrame(room, m.Username, m.Content, m.ID, m.CreatedAt))
	}
	return frames
}
