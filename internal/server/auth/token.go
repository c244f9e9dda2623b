// Package auth mints and parses the signed bearer tokens that carry an
// authenticated session. The token is an HS256 JWT whose ID (jti) is the
// server-side session row; verification of the HMAC is constant time, and
// the row lookup afterwards gives explicit revocation.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/common"
)

// Claims includes the registered claims plus the authenticated user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateSessionToken signs a token for the given session and user.
func GenerateSessionToken(sessionID, userID uuid.UUID, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID.String(),
	})
	return token.SignedString(secretKey)
}

// ParseSessionToken verifies the token signature and extracts the session
// and user ids. Any failure reports common.ErrNotAuthenticated; the caller
// must still confirm the session row exists.
func ParseSessionToken(tokenString string, secretKey []byte) (sessionID, userID uuid.UUID, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, uuid.Nil, common.ErrNotAuthenticated
	}

	sessionID, err = uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, common.ErrNotAuthenticated
	}
	userID, err = uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, uuid.Nil, common.ErrNotAuthenticated
	}
	return sessionID, userID, nil
}
