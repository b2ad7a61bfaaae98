package push

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/abdelmounim-dev/support-relay/config"
)

// ScopeSupervisor is the claim scope a token must carry to open a
// supervisor console.
const ScopeSupervisor = "supervisor"

var (
	ErrMissingScope = errors.New("token lacks the supervisor scope")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// ConsoleClaims defines the JWT claims presented by supervisor consoles.
// The 'jti' (JWT ID) from RegisteredClaims drives token revocation.
type ConsoleClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token was minted with the given scope.
func (c *ConsoleClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// revocationChecker is the slice of the Redis client the validator needs to
// consult the revocation list.
type revocationChecker interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// JWTValidator gates the supervisor console endpoint.
type JWTValidator struct {
	cfg         *config.AuthConfig
	revocations revocationChecker
}

// NewJWTValidator creates a validator. revocations may be nil, which
// disables the revocation check.
func NewJWTValidator(cfg *config.AuthConfig, revocations revocationChecker) *JWTValidator {
	return &JWTValidator{
		cfg:         cfg,
		revocations: revocations,
	}
}

// ValidateToken checks the signature and standard claims, requires the
// supervisor scope, and consults the revocation list. Only tokens minted for
// the console may open one; a client-scoped or unscoped token is refused even
// when its signature is good.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*ConsoleClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConsoleClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JWTSecret), nil
	})
	if err != nil {
		// Covers parsing errors, signature failures, and expired tokens.
		return nil, fmt.Errorf("token parse/validation error: %w", err)
	}

	claims, ok := token.Claims.(*ConsoleClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token claims are not console claims")
	}

	if !claims.HasScope(ScopeSupervisor) {
		return nil, ErrMissingScope
	}

	revoked, err := v.isTokenRevoked(ctx, claims.ID)
	if err != nil {
		// A Redis outage must not lock every supervisor out.
		log.Printf("CRITICAL: Failed to check token revocation status: %v", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// isTokenRevoked checks whether the token id (jti) is on the revocation list.
func (v *JWTValidator) isTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if v.revocations == nil {
		return false, nil
	}
	if jti == "" {
		log.Println("Warning: JWT token is missing 'jti' claim, cannot check for revocation.")
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", v.cfg.RevocationListKey, jti)
	exists, err := v.revocations.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis command failed: %w", err)
	}

	return exists == 1, nil
}
