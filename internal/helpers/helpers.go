package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator verifies access tokens issued by Supabase Auth.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*CustomClaims, error)
}

// JWKSValidator verifies tokens against the project's JWKS, fetched on first
// use and refreshed in the background.
type JWKSValidator struct {
	jwksURL         string
	allowUnverified bool
	logger          *slog.Logger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

// NewJWKSValidator builds a validator for the Supabase project at supabaseURL.
// allowUnverified falls back to unverified parsing when the JWKS cannot be
// fetched and must only be set in development.
func NewJWKSValidator(supabaseURL string, allowUnverified bool, logger *slog.Logger) *JWKSValidator {
	return &JWKSValidator{
		jwksURL:         strings.TrimRight(supabaseURL, "/") + "/auth/v1/.well-known/jwks.json",
		allowUnverified: allowUnverified,
		logger:          logger,
	}
}

func (v *JWKSValidator) keys() (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	// Ctx bounds the background refresh, so it must outlive this call.
	jwks, err := keyfunc.Get(v.jwksURL, keyfunc.Options{
		Ctx:               context.Background(),
		RefreshTimeout:    10 * time.Second,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			v.logger.Error("JWKS refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, err
	}
	v.jwks = jwks
	return jwks, nil
}

func (v *JWKSValidator) ValidateToken(tokenStr string) (*CustomClaims, error) {
	jwks, err := v.keys()
	if err != nil {
		if !v.allowUnverified {
			return nil, fmt.Errorf("jwks unavailable: %w", err)
		}
		v.logger.Warn("JWKS unavailable, parsing token unverified", "error", err)
		token, _, parseErr := jwt.NewParser().ParseUnverified(tokenStr, &CustomClaims{})
		if parseErr != nil {
			return nil, fmt.Errorf("JWKS validation failed and fallback parsing failed: %w", parseErr)
		}
		claims, ok := token.Claims.(*CustomClaims)
		if !ok {
			return nil, errors.New("invalid token claims")
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

// Close stops the background refresh.
func (v *JWKSValidator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
