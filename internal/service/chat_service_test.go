package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/john0isaac/fastroom/internal/config"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/hub"
	"github.com/john0isaac/fastroom/internal/kafka"
	"github.com/john0isaac/fastroom/internal/presence"
	"github.com/john0isaac/fastroom/internal/repository"
)

type memberKey struct {
	roomID uint
	userID uint
}

// fakeChatRepo is an in-memory ChatRepository.
type fakeChatRepo struct {
	mu       sync.Mutex
	rooms    map[string]*domain.Room
	members  map[memberKey]*domain.RoomMember
	messages []*domain.Message
	users    map[uint]string
	nextRoom uint
	nextMsg  uint
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		rooms:   make(map[string]*domain.Room),
		members: make(map[memberKey]*domain.RoomMember),
		users:   make(map[uint]string),
	}
}

func (r *fakeChatRepo) EnsureRoomAndMembership(ctx context.Context, roomName string, userID uint) (*domain.Room, *domain.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		r.nextRoom++
		room = &domain.Room{ID: r.nextRoom, Name: roomName}
		r.rooms[roomName] = room
	}
	key := memberKey{room.ID, userID}
	member, ok := r.members[key]
	if !ok {
		member = &domain.RoomMember{RoomID: room.ID, UserID: userID}
		r.members[key] = member
	}
	return room, member, nil
}

func (r *fakeChatRepo) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeChatRepo) GetMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberKey{roomID, userID}]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return member, nil
}

func (r *fakeChatRepo) CreateMessage(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMsg++
	msg.ID = r.nextMsg
	msg.CreatedAt = time.Now().UTC()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeChatRepo) RecentMessages(ctx context.Context, roomID uint, limit int) ([]domain.HistoryMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.HistoryMessage
	for _, m := range r.messages {
		if m.RoomID == roomID && !m.IsDeleted {
			all = append(all, r.toHistory(m))
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeChatRepo) MessagesBefore(ctx context.Context, roomID uint, beforeID int64, limit int) ([]domain.HistoryMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.HistoryMessage
	for _, m := range r.messages {
		if m.RoomID == roomID && !m.IsDeleted && int64(m.ID) < beforeID {
			all = append(all, r.toHistory(m))
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeChatRepo) toHistory(m *domain.Message) domain.HistoryMessage {
	h := domain.HistoryMessage{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt}
	if m.UserID != nil {
		h.Username = r.users[*m.UserID]
	}
	return h
}

func (r *fakeChatRepo) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeBus struct {
	mu        sync.Mutex
	published []map[string]any
}

func (b *fakeBus) Publish(ctx context.Context, room string, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, m)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, room string) error   { return nil }
func (b *fakeBus) Unsubscribe(ctx context.Context, room string) error { return nil }
func (b *fakeBus) Close() error                                       { return nil }

func (b *fakeBus) publishedTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []string
	for _, m := range b.published {
		t, _ := m["type"].(string)
		types = append(types, t)
	}
	return types
}

type testEnv struct {
	svc  ChatService
	repo *fakeChatRepo
	bus  *fakeBus
	hub  *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newFakeChatRepo()
	store := presence.NewMemoryStore(time.Minute)
	h := hub.New(store, time.Minute)
	b := &fakeBus{}
	h.SetBus(b)
	svc := NewChatService(h, repo, store, kafka.NoopProducer{}, "srv-test", 50, 25*time.Second)
	return &testEnv{svc: svc, repo: repo, bus: b, hub: h}
}

func newClient(userID uint, username string) *hub.Client {
	return hub.NewClient(nil, userID, username, config.WebSocketConfig{})
}

// nextFrame pops one queued outbound frame as a generic map.
func nextFrame(t *testing.T, c *hub.Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.Send:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return m
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func drain(c *hub.Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func frameType(m map[string]any) string {
	t, _ := m["type"].(string)
	return t
}

func TestConnectedGreeting(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(1, "alice")

	env.svc.HandleConnected(context.Background(), c)

	frame := nextFrame(t, c)
	if frameType(frame) != domain.MsgTypeSystem {
		t.Fatalf("type = %q, want system", frameType(frame))
	}
	if frame["message"] != "connected as alice" {
		t.Fatalf("message = %v", frame["message"])
	}
	if frame["heartbeatInterval"] != float64(25) {
		t.Fatalf("heartbeatInterval = %v, want 25", frame["heartbeatInterval"])
	}
}

func TestJoinFrameSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := newClient(1, "alice")

	env.svc.HandleJoin(ctx, c, "lobby")

	joined := nextFrame(t, c)
	if frameType(joined) != domain.MsgTypeJoined || joined["room"] != "lobby" {
		t.Fatalf("first frame = %v, want joined/lobby", joined)
	}

	state := nextFrame(t, c)
	if frameType(state) != domain.MsgTypePresenceState {
		t.Fatalf("second frame = %v, want presence_state", state)
	}
	users, _ := state["users"].([]any)
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("presence_state users = %v, want [alice]", users)
	}

	// History is always sent, even when the room has no messages.
	history := nextFrame(t, c)
	if frameType(history) != domain.MsgTypeHistory {
		t.Fatalf("third frame = %v, want history", history)
	}
	msgs, ok := history["messages"].([]any)
	if !ok || len(msgs) != 0 {
		t.Fatalf("history messages = %v, want empty array", history["messages"])
	}
}

func TestJoinAnnouncesFirstGlobalOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	peer := newClient(1, "bob")
	env.svc.HandleJoin(ctx, peer, "lobby")
	drain(peer)
	env.bus.mu.Lock()
	env.bus.published = nil
	env.bus.mu.Unlock()

	// First connection for alice announces.
	a1 := newClient(2, "alice")
	env.svc.HandleJoin(ctx, a1, "lobby")

	diff := nextFrame(t, peer)
	if frameType(diff) != domain.MsgTypePresenceDiff {
		t.Fatalf("peer frame = %v, want presence_diff", diff)
	}
	joins, _ := diff["join"].([]any)
	if len(joins) != 1 || joins[0] != "alice" {
		t.Fatalf("diff join = %v, want [alice]", joins)
	}
	sys := nextFrame(t, peer)
	if frameType(sys) != domain.MsgTypeSystem || sys["message"] != "alice joined" {
		t.Fatalf("peer frame = %v, want system alice joined", sys)
	}

	types := env.bus.publishedTypes()
	if len(types) != 2 || types[0] != domain.MsgTypePresenceDiff || types[1] != domain.MsgTypeSystem {
		t.Fatalf("published types = %v, want [presence_diff system]", types)
	}

	// Second connection for the same user must stay silent.
	drain(peer)
	a2 := newClient(2, "alice")
	env.svc.HandleJoin(ctx, a2, "lobby")
	select {
	case data := <-peer.Send:
		t.Fatalf("peer received %s on duplicate join", data)
	default:
	}
}

func TestChatDeliversAndPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := newClient(1, "alice")
	bob := newClient(2, "bob")
	env.svc.HandleJoin(ctx, alice, "lobby")
	env.svc.HandleJoin(ctx, bob, "lobby")
	drain(alice)
	drain(bob)

	env.svc.HandleChat(ctx, alice, "lobby", "hello")

	// Sender receives its own message.
	for _, c := range []*hub.Client{alice, bob} {
		frame := nextFrame(t, c)
		if frameType(frame) != domain.MsgTypeChat {
			t.Fatalf("%s got %v, want chat", c.Username, frame)
		}
		if frame["user"] != "alice" || frame["message"] != "hello" {
			t.Fatalf("chat frame = %v", frame)
		}
		if frame["message_id"] == nil {
			t.Fatal("chat frame missing message_id")
		}
	}

	if env.repo.messageCount() != 1 {
		t.Fatalf("messages persisted = %d, want 1", env.repo.messageCount())
	}
}

func TestChatRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	outsider := newClient(9, "eve")
	env.svc.HandleChat(ctx, outsider, "lobby", "hi")
	frame := nextFrame(t, outsider)
	if frameType(frame) != domain.MsgTypeError || frame["code"] != domain.ErrCodeNotInRoom {
		t.Fatalf("frame = %v, want NOT_IN_ROOM error", frame)
	}

	banned := newClient(1, "alice")
	env.svc.HandleJoin(ctx, banned, "lobby")
	drain(banned)
	room := env.repo.rooms["lobby"]
	env.repo.members[memberKey{room.ID, 1}].IsBanned = true

	env.svc.HandleChat(ctx, banned, "lobby", "hi")
	frame = nextFrame(t, banned)
	if frame["code"] != domain.ErrCodeBanned {
		t.Fatalf("frame = %v, want BANNED error", frame)
	}
	if env.repo.messageCount() != 0 {
		t.Fatal("rejected message must not be persisted")
	}

	env.repo.members[memberKey{room.ID, 1}].IsBanned = false
	env.repo.members[memberKey{room.ID, 1}].IsMuted = true
	env.svc.HandleChat(ctx, banned, "lobby", "hi")
	frame = nextFrame(t, banned)
	if frame["code"] != domain.ErrCodeMuted {
		t.Fatalf("frame = %v, want MUTED error", frame)
	}
}

func TestTypingBroadcastsWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := newClient(1, "alice")
	bob := newClient(2, "bob")
	env.svc.HandleJoin(ctx, alice, "lobby")
	env.svc.HandleJoin(ctx, bob, "lobby")
	drain(alice)
	drain(bob)

	env.svc.HandleTyping(ctx, alice, "lobby", true)

	for _, c := range []*hub.Client{alice, bob} {
		frame := nextFrame(t, c)
		if frameType(frame) != domain.MsgTypeTyping {
			t.Fatalf("%s got %v, want typing", c.Username, frame)
		}
		if frame["isTyping"] != true || frame["user"] != "alice" {
			t.Fatalf("typing frame = %v", frame)
		}
	}

	if env.repo.messageCount() != 0 {
		t.Fatal("typing must not persist anything")
	}
}

func TestHistoryMorePaging(t *testing.T) {
	ctx := context.Background()

	// A small page size keeps the more-flag checks readable.
	repo := newFakeChatRepo()
	store := presence.NewMemoryStore(time.Minute)
	h := hub.New(store, time.Minute)
	h.SetBus(&fakeBus{})
	svc := NewChatService(h, repo, store, kafka.NoopProducer{}, "srv-test", 3, 25*time.Second)

	alice := newClient(1, "alice")
	svc.HandleJoin(ctx, alice, "lobby")
	drain(alice)

	room := repo.rooms["lobby"]
	userID := uint(1)
	for i := 0; i < 7; i++ {
		repo.CreateMessage(ctx, &domain.Message{RoomID: room.ID, UserID: &userID, Content: fmt.Sprintf("m%d", i)})
	}

	// Page strictly older than id 7: ids 4,5,6 and a full page means more.
	svc.HandleHistoryMore(ctx, alice, "lobby", 7)
	frame := nextFrame(t, alice)
	if frameType(frame) != domain.MsgTypeHistoryMore {
		t.Fatalf("frame = %v, want history_more", frame)
	}
	msgs, _ := frame["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("page size = %d, want 3", len(msgs))
	}
	if frame["more"] != true {
		t.Fatal("full page must set more=true")
	}
	first, _ := msgs[0].(map[string]any)
	if first["message_id"] != float64(4) {
		t.Fatalf("first id = %v, want 4 (chronological)", first["message_id"])
	}

	// Paging before id 2 yields one row and no further pages.
	svc.HandleHistoryMore(ctx, alice, "lobby", 2)
	frame = nextFrame(t, alice)
	msgs, _ = frame["messages"].([]any)
	if len(msgs) != 1 || frame["more"] != false {
		t.Fatalf("short page = %v more = %v, want 1 row and more=false", len(msgs), frame["more"])
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	c := newClient(1, "alice")

	env.svc.HandlePing(context.Background(), c)

	frame := nextFrame(t, c)
	if frameType(frame) != domain.MsgTypePong {
		t.Fatalf("frame = %v, want pong", frame)
	}
	if frame["ts"] == nil {
		t.Fatal("pong missing ts")
	}
}

func TestDisconnectAnnouncesLikeLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := newClient(1, "alice")
	bob := newClient(2, "bob")
	env.svc.HandleJoin(ctx, alice, "lobby")
	env.svc.HandleJoin(ctx, bob, "lobby")
	drain(alice)
	drain(bob)

	env.svc.HandleDisconnect(ctx, alice)

	diff := nextFrame(t, bob)
	if frameType(diff) != domain.MsgTypePresenceDiff {
		t.Fatalf("frame = %v, want presence_diff", diff)
	}
	leaves, _ := diff["leave"].([]any)
	if len(leaves) != 1 || leaves[0] != "alice" {
		t.Fatalf("diff leave = %v, want [alice]", leaves)
	}
	sys := nextFrame(t, bob)
	if frameType(sys) != domain.MsgTypeSystem || sys["message"] != "alice left" {
		t.Fatalf("frame = %v, want system alice left", sys)
	}
	if env.hub.IsMember(alice, "lobby") {
		t.Fatal("disconnected client still registered")
	}
}

func TestExplicitLeaveSecondConnectionSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a1 := newClient(1, "alice")
	a2 := newClient(1, "alice")
	bob := newClient(2, "bob")
	env.svc.HandleJoin(ctx, bob, "lobby")
	env.svc.HandleJoin(ctx, a1, "lobby")
	env.svc.HandleJoin(ctx, a2, "lobby")
	drain(a1)
	drain(a2)
	drain(bob)

	// First connection leaves, alice is still present via a2.
	env.svc.HandleLeave(ctx, a1, "lobby")
	select {
	case data := <-bob.Send:
		t.Fatalf("bob received %s while alice still present", data)
	default:
	}

	// Last connection leaves, now the departure is announced.
	env.svc.HandleLeave(ctx, a2, "lobby")
	diff := nextFrame(t, bob)
	leaves, _ := diff["leave"].([]any)
	if frameType(diff) != domain.MsgTypePresenceDiff || len(leaves) != 1 {
		t.Fatalf("frame = %v, want presence_diff leave [alice]", diff)
	}
}
