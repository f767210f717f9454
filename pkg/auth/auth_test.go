package auth

import (
	"errors"
	"testing"
	"time"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	tokens, err := NewTokens(key, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := tokens.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	user, err := tokens.FromHeader("Bearer " + token)
	if err != nil || user != "alice" {
		t.Errorf("expected alice, got %q, %v", user, err)
	}
	if _, err := tokens.Issue(" "); err == nil {
		t.Error("expected an error for a blank user")
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens, _ := NewTokens(key, time.Hour)
	other, _ := NewTokens([]byte("another key of sufficient size"), time.Hour)
	foreign, _ := other.Issue("mallory")

	expiring, _ := NewTokens(key, time.Millisecond)
	stale, _ := expiring.Issue("alice")
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"not bearer", "Basic YWxpY2U6", ErrMissingToken},
		{"garbage", "Bearer not-a-token", ErrInvalidToken},
		{"wrong key", "Bearer " + foreign, ErrInvalidToken},
		{"expired", "Bearer " + stale, ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.FromHeader(tt.header); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewTokensValidates(t *testing.T) {
	if _, err := NewTokens([]byte("short"), time.Hour); err == nil {
		t.Error("expected an error for a short key")
	}
	if _, err := NewTokens(key, 0); err == nil {
		t.Error("expected an error for a zero lifetime")
	}
}
