package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "peerchat"

// IPCClaims identifies a UI client allowed to drive the local daemon.
type IPCClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 token for a UI client.
func GenerateToken(secret []byte, clientID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &IPCClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateToken checks the signature, expiry and issuer of tokenString.
func ValidateToken(secret []byte, tokenString string) (*IPCClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IPCClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*IPCClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
