// Package session derives the signed-in user's identity from the access
// token issued by the hosted backend.
//
// Tokens are decoded, not verified: the backend verifies every request it
// receives, so the client only needs the claims to build keys and
// placeholders.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/agita-app/agita/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the backend's access token we read.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Identity is the authenticated user as seen by the client.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	Role        string
}

// IsAdmin reports whether the user may use the moderation commands.
func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// Authenticated reports whether id carries a user.
func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

// FromToken decodes token and returns the identity it carries. A missing,
// malformed or expired token yields common.ErrUnauthorized.
func FromToken(token string, now time.Time) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, fmt.Errorf("%w: no access token", common.ErrUnauthorized)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", common.ErrUnauthorized)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return Identity{}, fmt.Errorf("%w: token expired at %s", common.ErrUnauthorized, claims.ExpiresAt.Time.Format(time.RFC3339))
	}

	role := claims.AppMetadata.Role
	if role == "" && claims.Role != "authenticated" {
		role = claims.Role
	}

	name := claims.UserMetadata.FullName
	if name == "" {
		name = claims.UserMetadata.Name
	}

	return Identity{
		UserID:      claims.Subject,
		DisplayName: name,
		Email:       claims.Email,
		Role:        role,
	}, nil
}
