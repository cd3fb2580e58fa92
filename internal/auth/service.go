package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/john0isaac/fastroom/internal/domain"
	"github.com/john0isaac/fastroom/internal/repository"
	"github.com/john0isaac/fastroom/pkg/log"
)

const minPasswordLength = 6

var (
	ErrInvalidPassword    = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
)

// Service implements registration, login and token lifecycle. Refresh tokens
// are stored as SHA-256 hashes so a database leak does not leak usable
// tokens.
type Service struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	jwt    *JWTManager
}

func NewService(users repository.UserRepository, tokens repository.TokenRepository, jwt *JWTManager) *Service {
	return &Service{users: users, tokens: tokens, jwt: jwt}
}

// Register creates a new account. The username is sanitized before storage;
// the sanitized form is what the user logs in with from then on.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username, err := SanitizeUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrInvalidPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:       username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: string(hashed),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	l := log.Ctx(ctx)
	l.Info().
		Uint(log.FieldUserID, user.ID).
		Str(log.FieldUsername, user.Username).
		Str(log.FieldLogType, log.LogTypeAudit).
		Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a token pair. The refresh token's
// hash is persisted for later revocation checks.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	sanitized, err := SanitizeUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, sanitized)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A revoked or expired token yields ErrInvalidCredentials.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	hash := hashToken(refreshToken)
	stored, err := s.tokens.GetRefreshToken(ctx, hash)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}

	if err := s.tokens.RevokeRefreshToken(ctx, hash); err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Logout revokes the presented refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// Authenticate resolves an access token to its user. Used by both the HTTP
// middleware and the websocket upgrade path.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.jwt.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	return user, nil
}

func (s *Service) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	record := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: time.Now().Add(s.jwt.RefreshTTL()),
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
