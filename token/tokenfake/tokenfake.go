// Package tokenfake mints access tokens shaped like the dashboard API's.
package tokenfake

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signingKey = []byte("tokenfake-signing-key")

// AccessToken returns an HS256 JWT for userID expiring at exp.
func AccessToken(userID string, exp time.Time) string {
	claims := jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"jti":        uuid.NewString(),
		"iat":        exp.Add(-time.Hour).Unix(),
		"exp":        exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// AccessTokenWithoutExpiry returns a well-formed JWT that carries no exp claim.
func AccessTokenWithoutExpiry(userID string) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID}).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}
