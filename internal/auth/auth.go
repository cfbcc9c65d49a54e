// Package auth resolves caller identity and roles. Tokens come from the
// external identity provider and are verified here; roles live in the
// user directory, not in token claims, so revoking admin never requires
// reissuing tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timesheet/internal/core"
	"timesheet/internal/store"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the verified, otherwise opaque caller identity.
type Principal struct {
	UID string
}

// Verifier turns a bearer token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// HMACVerifier validates HS256-signed tokens with a shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, raw string) (Principal, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UID: claims.Subject}, nil
}

// Directory answers role questions from the user store.
type Directory struct {
	users store.UserStore
}

func NewDirectory(users store.UserStore) *Directory {
	return &Directory{users: users}
}

// RoleOf returns the caller's role. Unknown users are plain members.
func (d *Directory) RoleOf(ctx context.Context, uid string) (string, error) {
	u, err := d.users.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return core.RoleMember, nil
	}
	if err != nil {
		return "", err
	}
	if u.Role == "" {
		return core.RoleMember, nil
	}
	return u.Role, nil
}

func (d *Directory) IsAdmin(ctx context.Context, uid string) (bool, error) {
	role, err := d.RoleOf(ctx, uid)
	if err != nil {
		return false, err
	}
	return role == core.RoleAdmin, nil
}

// Ensure creates a member directory record on first sight of a uid.
func (d *Directory) Ensure(ctx context.Context, uid string) error {
	_, err := d.users.GetUser(ctx, uid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return d.users.PutUser(ctx, core.User{
		UID:       uid,
		Role:      core.RoleMember,
		CreatedAt: time.Now().UTC(),
	})
}

// SetRole upserts a user record with the given role, preserving the rest
// of an existing record.
func (d *Directory) SetRole(ctx context.Context, uid, role string) error {
	u, err := d.users.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		u = core.User{UID: uid, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return err
	}
	u.Role = role
	return d.users.PutUser(ctx, u)
}
