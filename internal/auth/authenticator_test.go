package auth

import (
	"context"
	"testing"
	"time"

	"github.com/classrelay/relay/internal/testutil"
)

func TestAuthenticator_RegisterLoginVerify(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Hour)
	ctx := context.Background()

	if err := a.Register(ctx, "ms.rivera", "hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	token, err := a.Login(ctx, "ms.rivera", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	teacherID, err := a.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if teacherID == "" {
		t.Error("expected a non-empty teacher id")
	}
}

func TestAuthenticator_LoginWrongPassword(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Hour)
	ctx := context.Background()
	_ = a.Register(ctx, "ms.rivera", "hunter2")

	if _, err := a.Login(ctx, "ms.rivera", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticator_RegisterDuplicateUsername(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Hour)
	ctx := context.Background()
	_ = a.Register(ctx, "ms.rivera", "hunter2")

	if err := a.Register(ctx, "ms.rivera", "other"); err != ErrUsernameTaken {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthenticator_VerifyUnknownToken(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Hour)
	if _, err := a.Verify(context.Background(), "not-a-real-token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticator_VerifyExpiredToken(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Millisecond)
	ctx := context.Background()
	_ = a.Register(ctx, "ms.rivera", "hunter2")
	token, _ := a.Login(ctx, "ms.rivera", "hunter2")

	time.Sleep(10 * time.Millisecond)

	if _, err := a.Verify(ctx, token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for an expired token, got %v", err)
	}
}

func TestAuthenticator_CleanupExpired(t *testing.T) {
	a := NewAuthenticator(testutil.NewFakeStore(), time.Millisecond)
	ctx := context.Background()
	_ = a.Register(ctx, "ms.rivera", "hunter2")
	_, _ = a.Login(ctx, "ms.rivera", "hunter2")

	time.Sleep(10 * time.Millisecond)

	if n := a.CleanupExpired(); n != 1 {
		t.Errorf("expected 1 expired token purged, got %d", n)
	}
}
