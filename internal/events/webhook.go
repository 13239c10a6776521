package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Onebillie/parsetastic/internal/models"
)

// WebhookStore lists the active subscribers for an event type.
type WebhookStore interface {
	ActiveWebhooks(ctx context.Context, eventType string) ([]models.Webhook, error)
}

// WebhookSender POSTs each event's payload to every active subscriber.
type WebhookSender struct {
	store   WebhookStore
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookSender builds a sender. perSecond <= 0 disables throttling.
func NewWebhookSender(store WebhookStore, timeout time.Duration, perSecond float64) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &WebhookSender{
		store:   store,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *WebhookSender) Name() string { return "webhooks" }

// Send delivers to all subscribers concurrently. A failed subscriber does not stop the others;
// the first failure is returned after all have been tried.
func (s *WebhookSender) Send(ctx context.Context, ev models.Event) error {
	hooks, err := s.store.ActiveWebhooks(ctx, ev.Type)
	if err != nil {
		return eris.Wrap(err, "webhooks: load subscribers")
	}
	if len(hooks) == 0 {
		return nil
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return eris.Wrap(err, "webhooks: marshal payload")
	}

	var g errgroup.Group
	for _, h := range hooks {
		h := h
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := s.deliver(ctx, h, ev.Type, body); err != nil {
				zap.L().Warn("webhook delivery failed", zap.String("url", h.URL), zap.String("event", ev.Type), zap.Error(err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *WebhookSender) deliver(ctx context.Context, h models.Webhook, eventType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrapf(err, "webhooks: build request for %s", h.URL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", h.Secret)
	req.Header.Set("X-Webhook-Event", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "webhooks: post %s", h.URL)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return eris.Errorf("webhooks: %s answered %d", h.URL, resp.StatusCode)
	}
	return nil
}
