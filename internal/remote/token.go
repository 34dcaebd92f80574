package remote

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/duetapp/duet/internal/common"
)

// CheckToken inspects the session token's exp claim. The worker holds no
// signing key, so the claims are parsed without verification; the remote
// store does the real verification on every request. Used to skip a flush
// that would only collect 401s.
func CheckToken(tokenString string, now time.Time) error {
	parser := jwt.NewParser()
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(now) {
		return common.ErrTokenExpired
	}
	return nil
}
