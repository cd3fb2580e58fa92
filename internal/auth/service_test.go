package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/john0isaac/fastroom/internal/config"
	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/repository"
)

type fakeUserRepo struct {
	users  map[string]*domain.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, user *domain.User) error {
	if _, exists := r.users[user.Username]; exists {
		return repository.ErrUsernameTaken
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeTokenRepo struct {
	tokens map[string]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *fakeTokenRepo) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *fakeTokenRepo) GetRefreshToken(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	token, ok := r.tokens[hash]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return token, nil
}

func (r *fakeTokenRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	if token, ok := r.tokens[hash]; ok {
		token.Revoked = true
	}
	return nil
}

func (r *fakeTokenRepo) RevokeUserTokens(ctx context.Context, userID uint) error {
	for _, token := range r.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func newTestService() (*Service, *fakeUserRepo, *fakeTokenRepo) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	jwt := NewJWTManager(config.AuthConfig{
		Secret:          "test-secret",
		Issuer:          "fastroom-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	return NewService(users, tokens, jwt), users, tokens
}

func TestRegisterSanitizesUsername(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.RegisterRequest{Username: "  Alice--Smith ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice_smith" {
		t.Fatalf("username = %q, want alice_smith", user.Username)
	}
	if _, ok := users.users["alice_smith"]; !ok {
		t.Fatal("sanitized username not stored")
	}
	if user.HashedPassword == "secret1" {
		t.Fatal("password stored in clear")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), domain.RegisterRequest{Username: "alice", Password: "12345"})
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("err = %v, want ErrInvalidPassword", err)
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	pair, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("token type = %q, want bearer", pair.TokenType)
	}

	user, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q, want alice", user.Username)
	}

	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()

	svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret1"})
	pair, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must issue a new token")
	}

	// The used token is revoked; replaying it fails.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials on replay", err)
	}

	// An access token is never a valid refresh token.
	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials for access token", err)
	}

	revoked := 0
	for _, token := range tokens.tokens {
		if token.Revoked {
			revoked++
		}
	}
	if revoked != 1 {
		t.Fatalf("revoked tokens = %d, want 1", revoked)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret1"})
	pair, _ := svc.Login(ctx, "alice", "secret1")

	if err := svc.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials after logout", err)
	}
}

func TestDisabledUserCannotLogin(t *testing.T) {
	svc, users, _ := newTestService()
	ctx := context.Background()

	svc.Register(ctx, domain.RegisterRequest{Username: "alice", Password: "secret1"})
	users.users["alice"].Disabled = true

	if _, err := svc.Login(ctx, "alice", "secret1"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("err = %v, want ErrUserDisabled", err)
	}
}
