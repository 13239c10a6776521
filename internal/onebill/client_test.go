package onebill

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
)

func emptyPayload() *Payload {
	return &Payload{Bills: Bills{
		Customers:   []CustomerEntry{},
		Electricity: []ElectricityEntry{},
		Gas:         []GasEntry{},
		Broadband:   []BroadbandEntry{},
	}}
}

func TestClient_Submit(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ob_123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second, resilience.NewExecutor(resilience.DefaultConfig()))
	resp, err := c.Submit(context.Background(), "+353871234567", emptyPayload())
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"ob_123","status":"queued"}`, string(resp))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/api/v2/bills", gotPath)
	assert.Equal(t, "+353871234567", gotBody["phone"])
	bills := gotBody["bills"].(map[string]any)
	assert.Equal(t, []any{}, bills["gas"])
}

func TestClient_SubmitNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid phone", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", time.Second, nil).Submit(context.Background(), "bad", emptyPayload())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrBillingFailed))
	assert.Contains(t, err.Error(), "OneBill API failed: 422 - invalid phone")
}

func TestClient_SubmitWithoutKey(t *testing.T) {
	_, err := NewClient("", "", 0, nil).Submit(context.Background(), "+353", emptyPayload())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrBillingFailed))
	assert.Contains(t, err.Error(), "ONEBILL_API_KEY not configured")
}

func TestClient_SubmitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", 50*time.Millisecond, nil).Submit(context.Background(), "+353", emptyPayload())
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrBillingFailed))
}
