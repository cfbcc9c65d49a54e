package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timesheet/internal/core"
	"timesheet/internal/store/memory"
)

const testSecret = "test-secret-0123456789abcdef"

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestHMACVerifier(t *testing.T) {
	ctx := context.Background()
	v := NewHMACVerifier(testSecret)

	p, err := v.Verify(ctx, signToken(t, testSecret, "u1"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UID != "u1" {
		t.Errorf("uid = %q, want u1", p.UID)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "another-secret-0123456789ab", "u1")},
		{"missing subject", signToken(t, testSecret, "")},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	v := NewHMACVerifier(testSecret)
	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token = %v, want ErrInvalidToken", err)
	}
}

func TestDirectoryRoles(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory(st)

	// Unknown users are plain members, never an error.
	role, err := d.RoleOf(ctx, "nobody")
	if err != nil {
		t.Fatalf("role of unknown user: %v", err)
	}
	if role != core.RoleMember {
		t.Errorf("unknown role = %q, want member", role)
	}

	if err := st.PutUser(ctx, core.User{UID: "boss", Role: core.RoleAdmin}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	isAdmin, err := d.IsAdmin(ctx, "boss")
	if err != nil {
		t.Fatalf("is admin: %v", err)
	}
	if !isAdmin {
		t.Error("boss should be admin")
	}
	if isAdmin, _ := d.IsAdmin(ctx, "nobody"); isAdmin {
		t.Error("unknown user should not be admin")
	}
}

func TestDirectoryEnsure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory(st)

	if err := d.Ensure(ctx, "u1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	u, err := st.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Role != core.RoleMember {
		t.Errorf("first-sight role = %q, want member", u.Role)
	}

	// Ensure never downgrades an existing record.
	if err := d.SetRole(ctx, "u1", core.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := d.Ensure(ctx, "u1"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if role, _ := d.RoleOf(ctx, "u1"); role != core.RoleAdmin {
		t.Errorf("role after re-ensure = %q, want admin", role)
	}
}

func TestDirectorySetRolePreservesRecord(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory(st)

	if err := st.PutUser(ctx, core.User{UID: "u1", DisplayName: "Dana", Email: "dana@example.com", Role: core.RoleMember}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := d.SetRole(ctx, "u1", core.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	u, err := st.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Role != core.RoleAdmin || u.DisplayName != "Dana" || u.Email != "dana@example.com" {
		t.Errorf("record = %+v, want promoted with fields intact", u)
	}

	// Unknown uid gets a fresh record.
	if err := d.SetRole(ctx, "new", core.RoleAdmin); err != nil {
		t.Fatalf("set role new: %v", err)
	}
	if role, _ := d.RoleOf(ctx, "new"); role != core.RoleAdmin {
		t.Errorf("new role = %q, want admin", role)
	}
}
