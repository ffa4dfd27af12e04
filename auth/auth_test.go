package auth

import (
	"chat-client/domain/chat"
	"chat-client/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims CustomClaims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	require.NoError(t, err)
	return token
}

func TestIdentityFromToken(t *testing.T) {
	req := require.New(t)
	token := signedToken(t, CustomClaims{UserID: "65f0c0ffee", Username: "alice"})

	identity, err := IdentityFromToken(token)

	req.NoError(err)
	req.Equal(chat.Identity{ID: "65f0c0ffee", Username: "alice"}, identity)
}

func TestIdentityFromToken_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"not a jwt", func(*testing.T) string { return "definitely-not-a-token" }},
		{"no user id", func(t *testing.T) string { return signedToken(t, CustomClaims{Username: "alice"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IdentityFromToken(tt.token(t))
			require.ErrorIs(t, err, errors.ErrMissingIdentity)
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	token := signedToken(t, CustomClaims{UserID: "u1", Username: "alice"})

	t.Run("explicit id wins", func(t *testing.T) {
		identity, err := ResolveIdentity("", "u9", "zoe")
		require.NoError(t, err)
		require.Equal(t, chat.Identity{ID: "u9", Username: "zoe"}, identity)
	})

	t.Run("username override", func(t *testing.T) {
		identity, err := ResolveIdentity(token, "", "Alice B.")
		require.NoError(t, err)
		require.Equal(t, chat.Identity{ID: "u1", Username: "Alice B."}, identity)
	})

	t.Run("from token", func(t *testing.T) {
		identity, err := ResolveIdentity(token, "", "")
		require.NoError(t, err)
		require.Equal(t, chat.UserID("u1"), identity.ID)
	})
}
