package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/servicedesk/servicedesk/internal/platform/httpx"
	"github.com/servicedesk/servicedesk/internal/shared"
)

// Authenticator verifies HS256 bearer tokens and exposes their claims to handlers.
type Authenticator struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator. An empty issuer disables the issuer check.
func NewAuthenticator(secret, issuer string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, logger: logger}
}

// Verify parses and validates a raw token, returning its claims.
func (a *Authenticator) Verify(raw string) (shared.Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, shared.ErrInvalidToken
	}
	return shared.Claims(claims), nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w, shared.ErrMissingToken)
			return
		}
		claims, err := a.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("jwt verify failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			unauthorized(w, shared.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithClaims(r.Context(), claims)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+err.Error()+`"`)
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
}
