package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/john0isaac/fastroom/internal/domain"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	// A named shared-cache DSN keeps the database visible across pooled
	// connections; the test name isolates tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.RoomMember{},
		&domain.Message{},
		&domain.RefreshToken{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormRepository(db)
}

func seedUser(t *testing.T, r *GormRepository, username string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, HashedPassword: "x"}
	if err := r.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func TestCreateUserDuplicate(t *testing.T) {
	r := newTestRepo(t)
	seedUser(t, r, "alice")

	err := r.CreateUser(context.Background(), &domain.User{Username: "alice", HashedPassword: "y"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seeded := seedUser(t, r, "alice")

	user, err := r.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user.ID != seeded.ID {
		t.Fatalf("id = %d, want %d", user.ID, seeded.ID)
	}

	if _, err := r.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestEnsureRoomAndMembershipIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")

	room1, member1, err := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	room2, member2, err := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if room1.ID != room2.ID {
		t.Fatalf("room ids differ: %d vs %d", room1.ID, room2.ID)
	}
	if member1.ID != member2.ID {
		t.Fatalf("member ids differ: %d vs %d", member1.ID, member2.ID)
	}
}

func TestRecentMessagesChronologicalWithUsernames(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")
	room, _, _ := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)

	for i := 0; i < 5; i++ {
		msg := &domain.Message{RoomID: room.ID, UserID: &user.ID, Content: fmt.Sprintf("m%d", i)}
		if err := r.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := r.RecentMessages(ctx, room.ID, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	// Newest three, oldest first.
	if msgs[0].Content != "m2" || msgs[2].Content != "m4" {
		t.Fatalf("order wrong: %v", msgs)
	}
	for _, m := range msgs {
		if m.Username != "alice" {
			t.Fatalf("username = %q, want alice", m.Username)
		}
	}
}

func TestMessagesBefore(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")
	room, _, _ := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)

	var ids []uint
	for i := 0; i < 5; i++ {
		msg := &domain.Message{RoomID: room.ID, UserID: &user.ID, Content: fmt.Sprintf("m%d", i)}
		r.CreateMessage(ctx, msg)
		ids = append(ids, msg.ID)
	}

	msgs, err := r.MessagesBefore(ctx, room.ID, int64(ids[3]), 10)
	if err != nil {
		t.Fatalf("MessagesBefore: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3 (strictly older)", len(msgs))
	}
	if msgs[len(msgs)-1].ID >= ids[3] {
		t.Fatal("page contains ids not strictly older than before_id")
	}
}

func TestDeletedMessagesExcluded(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")
	room, _, _ := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)

	msg := &domain.Message{RoomID: room.ID, UserID: &user.ID, Content: "hidden"}
	r.CreateMessage(ctx, msg)
	if err := r.DeleteMessage(ctx, room.ID, msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	msgs, err := r.RecentMessages(ctx, room.ID, 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("deleted message still visible: %v", msgs)
	}

	// Deleting twice reports not found.
	if err := r.DeleteMessage(ctx, room.ID, msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("err = %v, want ErrMessageNotFound", err)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")

	token := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := r.CreateRefreshToken(ctx, token); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	stored, err := r.GetRefreshToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetRefreshToken: %v", err)
	}
	if stored.Revoked {
		t.Fatal("fresh token must not be revoked")
	}

	if err := r.RevokeRefreshToken(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshToken: %v", err)
	}
	stored, _ = r.GetRefreshToken(ctx, "hash-1")
	if !stored.Revoked {
		t.Fatal("token must be revoked")
	}

	if _, err := r.GetRefreshToken(ctx, "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestListRoomsPagingAndOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := r.CreateRoom(ctx, &domain.Room{Name: fmt.Sprintf("room-%d", i)}); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
	}

	rooms, total, err := r.ListRooms(ctx, 2, 0, true)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if total != 5 || len(rooms) != 2 {
		t.Fatalf("total = %d len = %d, want 5 and 2", total, len(rooms))
	}
	if rooms[0].Name != "room-0" {
		t.Fatalf("ascending first = %q, want room-0", rooms[0].Name)
	}

	rooms, _, err = r.ListRooms(ctx, 2, 0, false)
	if err != nil {
		t.Fatalf("ListRooms desc: %v", err)
	}
	if rooms[0].Name != "room-4" {
		t.Fatalf("descending first = %q, want room-4", rooms[0].Name)
	}

	if err := r.CreateRoom(ctx, &domain.Room{Name: "room-0"}); !errors.Is(err, ErrRoomNameTaken) {
		t.Fatalf("err = %v, want ErrRoomNameTaken", err)
	}
}

func TestMemberFlagsRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")
	room, member, _ := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)

	member.IsModerator = true
	member.IsMuted = true
	if err := r.UpdateMember(ctx, member); err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}

	got, err := r.GetMember(ctx, room.ID, user.ID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if !got.IsModerator || !got.IsMuted || got.IsBanned {
		t.Fatalf("flags = %+v", got)
	}

	members, total, err := r.ListMembers(ctx, room.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if total != 1 || len(members) != 1 {
		t.Fatalf("total = %d len = %d, want 1 and 1", total, len(members))
	}
	if members[0].Username != "alice" || !members[0].IsModerator {
		t.Fatalf("member = %+v", members[0])
	}

	if err := r.RemoveMember(ctx, room.ID, user.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err := r.GetMember(ctx, room.ID, user.ID); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("err = %v, want ErrMemberNotFound", err)
	}
}

func TestDeleteRoomCascades(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, r, "alice")
	room, _, _ := r.EnsureRoomAndMembership(ctx, "lobby", user.ID)
	r.CreateMessage(ctx, &domain.Message{RoomID: room.ID, UserID: &user.ID, Content: "bye"})

	if err := r.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if _, err := r.GetRoomByID(ctx, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if _, err := r.GetMember(ctx, room.ID, user.ID); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("membership survived room deletion: %v", err)
	}
	if err := r.DeleteRoom(ctx, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("second delete err = %v, want ErrRoomNotFound", err)
	}
}
