// Package auth issues reviewer tokens and guards the API with them.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
)

const issuer = "parsetastic"

// Claims identify the reviewer behind a request.
type Claims struct {
	ReviewerID string `json:"reviewer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 reviewer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an issuer. A zero ttl means 24 hours.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, eris.New("auth: jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateToken signs a token for the reviewer and returns it with its expiry.
func (i *Issuer) GenerateToken(reviewerID, email, name string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		ReviewerID: reviewerID,
		Email:      email,
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   reviewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "auth: sign token")
	}
	return signed, exp, nil
}

// ParseToken verifies signature, issuer and expiry.
func (i *Issuer) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, models.WrapError(models.ErrUnauthorized, "auth: parse token", err)
	}
	if claims.ReviewerID == "" {
		return nil, models.WrapError(models.ErrUnauthorized, "auth: parse token", eris.New("token has no reviewer"))
	}
	return claims, nil
}

type ctxKey struct{}

// ReviewerFromContext returns the claims the middleware attached, if any.
func ReviewerFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// WithReviewer attaches claims to ctx.
func WithReviewer(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// Public paths never need a token.
var Public = []string{"/health", "/metrics", "/api/login"}

// Middleware rejects requests without a valid bearer token. A nil issuer disables it.
func Middleware(i *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if i == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			claims, err := i.ParseToken(strings.TrimSpace(token))
			if err != nil {
				zap.L().Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithReviewer(r.Context(), claims)))
		})
	}
}

func isPublic(path string) bool {
	for _, p := range Public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
