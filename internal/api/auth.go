package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
)

// AuthConfig holds authentication configuration. Requests authenticate
// with either the static API key (X-API-Key header) or a bearer token
// issued by IssueToken.
type AuthConfig struct {
	Enabled   bool
	APIKey    string
	JWTSecret string        // HMAC secret for bearer tokens
	TokenTTL  time.Duration // Lifetime of issued tokens (default 24h)
}

// AuthMiddleware checks authentication when enabled.
// Health endpoints (/, /health) always bypass authentication.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !authCfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			if constantTimeCompare(apiKey, authCfg.APIKey) {
				next.ServeHTTP(w, r)
				return
			}
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}

		if token := bearerToken(r); token != "" {
			if err := validateToken(token, authCfg.JWTSecret); err != nil {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", "invalid bearer token")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		logging.SecurityEvent("unauthorized_request", "auth",
			"path", r.URL.Path,
			"reason", "missing credentials")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header or bearer token")
	})
}

// isPublicEndpoint returns true if the endpoint should always be
// accessible without authentication.
func isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/",
		"/health",
	}
	for _, publicPath := range publicPaths {
		if path == publicPath {
			return true
		}
	}
	return false
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" && cfg.JWTSecret == "" {
		return fmt.Errorf("API key or JWT secret is required when authentication is enabled")
	}
	if cfg.APIKey != "" && len(cfg.APIKey) < 16 {
		return fmt.Errorf("API key must be at least 16 characters (got %d)", len(cfg.APIKey))
	}
	return nil
}

// IssueToken creates a signed bearer token for the given subject.
func IssueToken(cfg AuthConfig, subject string) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func validateToken(tokenString, secret string) error {
	if secret == "" {
		return fmt.Errorf("bearer tokens not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// constantTimeCompare performs a constant-time comparison of two strings.
// This prevents timing attacks by ensuring the comparison always takes
// the same amount of time regardless of where the strings differ.
func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
