package trend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	forecast "payoutflow/internal/forecast/domain"
)

func TestEstimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/acct-1/estimate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("horizon_days") != "30" {
			t.Errorf("unexpected horizon %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount_cents":420000,"lower_bound_cents":380000,"upper_bound_cents":460000,"horizon_days":30}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	estimate, err := client.Estimate(context.Background(), "acct-1", 30)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.Amount != 420000 || estimate.LowerBound != 380000 || estimate.UpperBound != 460000 {
		t.Fatalf("estimate mismatch: %+v", estimate)
	}
	if estimate.Horizon != 30 {
		t.Fatalf("horizon mismatch: %d", estimate.Horizon)
	}
}

func TestEstimate_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Estimate(context.Background(), "acct-missing", 30); !errors.Is(err, forecast.ErrSettlementNotFound) {
		t.Fatalf("expected ErrSettlementNotFound, got %v", err)
	}
}

func TestEstimate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Estimate(context.Background(), "acct-1", 30); err == nil {
		t.Fatalf("expected error on http 500")
	}
}
