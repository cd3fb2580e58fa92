package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/john0isaac/fastroom/internal/config"
)

func testJWTManager(accessTTL time.Duration) *JWTManager {
	return NewJWTManager(config.AuthConfig{
		Secret:          "test-secret",
		Issuer:          "fastroom-test",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: time.Hour,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testJWTManager(time.Minute)

	token, err := m.GenerateAccessToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("username = %q, want alice", claims.Username)
	}
	if claims.Subject != "42" {
		t.Fatalf("subject = %q, want 42", claims.Subject)
	}
}

func TestRefreshTokenNotAcceptedAsAccess(t *testing.T) {
	m := testJWTManager(time.Minute)

	refresh, err := m.GenerateRefreshToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	if _, err := m.VerifyAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	if _, err := m.VerifyRefreshToken(refresh); err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	m := testJWTManager(-time.Minute)

	token, err := m.GenerateAccessToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := m.VerifyAccessToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := testJWTManager(time.Minute)
	other := NewJWTManager(config.AuthConfig{
		Secret:          "different-secret",
		Issuer:          "fastroom-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	token, err := other.GenerateAccessToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := m.VerifyAccessToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
