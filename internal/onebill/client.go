package onebill

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
)

const (
	DefaultBaseURL = "https://api.onebill.ie"
	billsPath      = "/api/v2/bills"
)

// Client submits transformed bills to the OneBill API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	exec       *resilience.Executor
}

// NewClient builds a client. A zero timeout means 30 seconds; exec may be nil.
func NewClient(baseURL, apiKey string, timeout time.Duration, exec *resilience.Executor) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

type submitRequest struct {
	Phone string `json:"phone"`
	Bills Bills  `json:"bills"`
}

// Submit posts the payload once and returns the API's response body.
// Any non-2xx status is an ErrBillingFailed carrying the status and body.
func (c *Client) Submit(ctx context.Context, phone string, payload *Payload) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, models.WrapError(models.ErrBillingFailed, "onebill: submit", eris.New("ONEBILL_API_KEY not configured"))
	}
	if payload == nil {
		return nil, models.WrapError(models.ErrInvalidInput, "onebill: submit", eris.New("nil payload"))
	}
	body, err := json.Marshal(submitRequest{Phone: phone, Bills: payload.Bills})
	if err != nil {
		return nil, eris.Wrap(err, "onebill: marshal request")
	}

	var out json.RawMessage
	err = c.exec.Execute(ctx, "onebill.submit", func(ctx context.Context) error {
		out, err = c.post(ctx, body)
		return err
	}, resilience.SkipCanceled)
	if err != nil {
		if models.IsKind(err, models.ErrBillingFailed) {
			return nil, err
		}
		return nil, models.WrapError(models.ErrBillingFailed, "onebill: submit", err)
	}

	zap.L().Info("bills submitted to onebill",
		zap.String("phone", phone),
		zap.Int("electricity", len(payload.Bills.Electricity)),
		zap.Int("gas", len(payload.Bills.Gas)),
		zap.Int("broadband", len(payload.Bills.Broadband)),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+billsPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "onebill: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "onebill: request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "onebill: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.WrapError(models.ErrBillingFailed, "onebill: submit",
			eris.Errorf("OneBill API failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(respBody) {
		quoted, _ := json.Marshal(string(respBody))
		return quoted, nil
	}
	return respBody, nil
}
