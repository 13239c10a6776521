package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Onebillie/parsetastic/internal/db"
)

// ReviewerStore looks reviewers up by email. *db.Store satisfies it.
type ReviewerStore interface {
	ReviewerByEmail(ctx context.Context, email string) (*db.Reviewer, error)
	TouchReviewer(ctx context.Context, id string) error
}

// LoginRequest is the login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the token for subsequent calls.
type LoginResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	ReviewerID string    `json:"reviewer_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
}

// LoginHandler checks a reviewer's password and returns a signed token.
func LoginHandler(store ReviewerStore, issuer *Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		if store == nil || issuer == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authentication is not available"})
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		rev, err := store.ReviewerByEmail(ctx, req.Email)
		if err != nil {
			zap.L().Info("login failed", zap.String("email", req.Email), zap.Error(err))
			unauthorized(w, "invalid credentials")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(rev.PasswordHash), []byte(req.Password)); err != nil {
			zap.L().Info("login failed", zap.String("email", req.Email), zap.String("reason", "password mismatch"))
			unauthorized(w, "invalid credentials")
			return
		}

		token, exp, err := issuer.GenerateToken(rev.ID, rev.Email, rev.Name)
		if err != nil {
			zap.L().Error("failed to sign token", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
			return
		}
		if err := store.TouchReviewer(ctx, rev.ID); err != nil {
			zap.L().Warn("failed to record login", zap.String("reviewer_id", rev.ID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Token:      token,
			ExpiresAt:  exp,
			ReviewerID: rev.ID,
			Email:      rev.Email,
			Name:       rev.Name,
		})
	}
}

// HashPassword returns the bcrypt hash stored for a reviewer.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}
