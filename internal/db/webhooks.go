package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Onebillie/parsetastic/internal/models"
)

// ActiveWebhooks returns the active subscribers for one event type.
func (s *Store) ActiveWebhooks(ctx context.Context, eventType string) ([]models.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, url, secret, active
		FROM webhooks WHERE event_type = $1 AND active = TRUE`, eventType)
	if err != nil {
		return nil, eris.Wrapf(err, "db: webhooks for %s", eventType)
	}
	defer rows.Close()

	out := []models.Webhook{}
	for rows.Next() {
		var w models.Webhook
		if err := rows.Scan(&w.ID, &w.EventType, &w.URL, &w.Secret, &w.Active); err != nil {
			return nil, eris.Wrap(err, "db: scan webhook")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "db: iterate webhooks")
}

// Reviewer is a human allowed to approve documents.
type Reviewer struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

// ReviewerByEmail returns the active reviewer with that email, or ErrUnauthorized.
func (s *Store) ReviewerByEmail(ctx context.Context, email string) (*Reviewer, error) {
	var r Reviewer
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash FROM reviewers
		WHERE lower(email) = lower($1) AND active = TRUE`, email,
	).Scan(&r.ID, &r.Email, &r.Name, &r.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.WrapError(models.ErrUnauthorized, "db: reviewer", eris.New("unknown reviewer"))
	}
	if err != nil {
		return nil, eris.Wrap(err, "db: reviewer by email")
	}
	return &r, nil
}

// TouchReviewer records a successful login.
func (s *Store) TouchReviewer(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE reviewers SET last_login_at = $2 WHERE id = $1`, id, s.now().UTC())
	return eris.Wrap(err, "db: touch reviewer")
}
