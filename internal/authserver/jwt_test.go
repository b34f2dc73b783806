package authserver_test

import (
	"testing"
	"time"

	"onevizn-platform/internal/authserver"
	"onevizn-platform/internal/config"
	"onevizn-platform/internal/identity"
	"onevizn-platform/internal/session"
)

func testManager(t *testing.T) *authserver.Manager {
	t.Helper()
	m, err := authserver.NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "onevizn",
		JWTAudience:    "admin",
		AccessTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := testManager(t)

	now := time.Now().UTC()
	user := identity.User{
		ID:       "u-1",
		UserName: "alice",
		Email:    "alice@example.com",
		Roles:    []string{"owner"},
	}
	tok, err := m.Issue(now, user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u-1" || claims.UserName != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "owner" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m := testManager(t)

	now := time.Now().UTC()
	tok, err := m.Issue(now, identity.User{ID: "u-1", UserName: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	other, err := authserver.NewManager(config.AuthConfig{JWTSecret: "different", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Now()
	tok, err := other.Issue(now, identity.User{ID: "u-1", UserName: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := authserver.NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}

// The admin shell decodes issued tokens without verification; the payload
// field names are a cross-layer contract worth pinning down.
func TestIssuedTokenDecodesClientSide(t *testing.T) {
	m := testManager(t)

	now := time.Now()
	user := identity.User{
		ID:       "u-1",
		UserName: "alice",
		Email:    "alice@example.com",
		Roles:    []string{"owner", "worker"},
	}
	tok, err := m.Issue(now, user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims := session.DecodeClaims(tok)
	if claims.UserName != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("client-side decode lost identity: %+v", claims)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("client-side decode lost roles: %v", claims.Roles)
	}
	wantExp := now.Add(time.Hour).Unix()
	if claims.Exp != wantExp {
		t.Fatalf("expected exp %d, got %d", wantExp, claims.Exp)
	}
}
