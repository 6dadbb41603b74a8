package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nebulahq/nebula/errs"
)

// Tokens carry only the user ID; issuance belongs to the identity provider
// and Nebula just signs short-lived ones for tests and local development.
type Tokens struct {
	Secret string
}

func (t Tokens) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString([]byte(t.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the user ID the token was issued for.
// Any parse, signature or expiry failure comes back as an unauthenticated error.
func (t Tokens) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(t.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", errs.NewUnauthenticatedError("invalid or expired token")
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", errs.NewUnauthenticatedError("token has no subject")
	}

	return userID, nil
}
