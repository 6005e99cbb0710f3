package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

const testSecret = "integration-test-signing-secret"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	manager, err := NewJWTManager(testSecret, "carescope-gateway", "carescope-platform", time.Hour)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return manager
}

func TestIssueAndValidateToken(t *testing.T) {
	manager := newTestManager(t)

	token, err := manager.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if len(strings.Split(token, ".")) != 3 {
		t.Fatalf("expected three token segments, got %q", token)
	}

	claims, err := manager.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error validating token: %v", err)
	}
	if claims.Subject != "reporting-job" {
		t.Fatalf("expected subject reporting-job, got %q", claims.Subject)
	}
	if claims.Role != "analyst" {
		t.Fatalf("expected role analyst, got %q", claims.Role)
	}
	if claims.Issuer != "carescope-gateway" || claims.Audience != "carescope-platform" {
		t.Fatalf("unexpected issuer/audience: %q %q", claims.Issuer, claims.Audience)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
	if claims.ExpiresAt-claims.IssuedAt != int64(time.Hour.Seconds()) {
		t.Fatalf("expected one hour lifetime, got %d seconds", claims.ExpiresAt-claims.IssuedAt)
	}
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "iss", "aud", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestNewJWTManagerDefaultsTTL(t *testing.T) {
	manager, err := NewJWTManager(testSecret, "iss", "aud", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.TTL() != time.Hour {
		t.Fatalf("expected one hour default, got %s", manager.TTL())
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	manager := newTestManager(t)
	manager.nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := manager.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager.nowFunc = time.Now
	if _, err := manager.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsNotYetValid(t *testing.T) {
	manager := newTestManager(t)
	manager.nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }

	token, err := manager.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager.nowFunc = time.Now
	if _, err := manager.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected future token to be rejected")
	}
}

func TestValidateTokenRejectsTamperedPayload(t *testing.T) {
	manager := newTestManager(t)

	legit, err := manager.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, err := manager.IssueToken("intruder", "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	legitParts := strings.Split(legit, ".")
	otherParts := strings.Split(other, ".")
	forged := strings.Join([]string{legitParts[0], otherParts[1], legitParts[2]}, ".")

	if _, err := manager.ValidateToken(context.Background(), forged); err == nil {
		t.Fatal("expected forged payload to be rejected")
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	foreign, err := NewJWTManager(testSecret, "other-gateway", "carescope-platform", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := foreign.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager := newTestManager(t)
	if _, err := manager.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected foreign issuer to be rejected")
	}
}

func TestValidateTokenRejectsForeignAudience(t *testing.T) {
	foreign, err := NewJWTManager(testSecret, "carescope-gateway", "other-platform", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := foreign.IssueToken("reporting-job", "analyst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager := newTestManager(t)
	if _, err := manager.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expected foreign audience to be rejected")
	}
}

func TestValidateTokenRejectsMalformed(t *testing.T) {
	manager := newTestManager(t)
	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := manager.ValidateToken(context.Background(), token); err == nil {
			t.Fatalf("expected rejection for %q", token)
		}
	}
}
