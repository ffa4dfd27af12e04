package auth

import (
	"chat-client/domain/chat"
	"chat-client/errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims is the payload the chat server signs into the session token.
type CustomClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IdentityFromToken reads the local user out of the session token.
// The client never holds the signing key, so the signature is not verified:
// the server does that on every request.
func IdentityFromToken(tokenString string) (chat.Identity, error) {
	claims := &CustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %w", errors.ErrMissingIdentity, err)
	}
	if claims.UserID == "" {
		return chat.Identity{}, fmt.Errorf("%w: token has no userId claim", errors.ErrMissingIdentity)
	}
	return chat.Identity{ID: chat.UserID(claims.UserID), Username: claims.Username}, nil
}

// ResolveIdentity prefers an explicit user id over the token claims.
func ResolveIdentity(tokenString, selfID, selfUsername string) (chat.Identity, error) {
	if selfID != "" {
		return chat.Identity{ID: chat.UserID(selfID), Username: selfUsername}, nil
	}
	identity, err := IdentityFromToken(tokenString)
	if err != nil {
		return chat.Identity{}, err
	}
	if selfUsername != "" {
		identity.Username = selfUsername
	}
	return identity, nil
}
