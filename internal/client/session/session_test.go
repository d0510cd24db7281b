package session

import (
	"testing"
	"time"

	"github.com/agita-app/agita/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return s
}

func TestFromToken(t *testing.T) {
	tok := sign(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:        "ana@example.com",
		Role:         "authenticated",
		UserMetadata: UserMetadata{FullName: "Ana Souza"},
	})

	id, err := FromToken("Bearer "+tok, now)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", DisplayName: "Ana Souza", Email: "ana@example.com"}, id)
	assert.True(t, id.Authenticated())
	assert.False(t, id.IsAdmin())
}

func TestFromToken_AdminRole(t *testing.T) {
	tok := sign(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a1"},
		Role:             "authenticated",
		AppMetadata:      AppMetadata{Role: "admin"},
		UserMetadata:     UserMetadata{Name: "Admin"},
	})

	id, err := FromToken(tok, now)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
	assert.Equal(t, "Admin", id.DisplayName)
}

func TestFromToken_Rejects(t *testing.T) {
	expired := sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}})
	anonymous := sign(t, Claims{Role: "anon"})

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"expired", expired},
		{"no subject", anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromToken(tt.token, now)
			require.ErrorIs(t, err, common.ErrUnauthorized)
		})
	}
}

func TestIdentity_ZeroValue(t *testing.T) {
	var id Identity
	assert.False(t, id.Authenticated())
	assert.False(t, id.IsAdmin())
}
