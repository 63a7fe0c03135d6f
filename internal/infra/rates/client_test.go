package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func spotServer(t *testing.T, amount string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"data":{"amount":"%s","base":"BCH","currency":"USD"}}`, amount)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_FetchRate(t *testing.T) {
	server := spotServer(t, "231.56")

	client := NewClientWithConfig(server.URL, 1)

	if err := client.fetchRate(context.Background()); err != nil {
		t.Fatalf("fetchRate failed: %v", err)
	}

	rate, err := client.USDPerBCH()
	if err != nil {
		t.Fatalf("USDPerBCH failed: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("231.56")) {
		t.Errorf("expected 231.56, got %s", rate)
	}
}

func TestClient_RateUnavailableBeforeFirstFetch(t *testing.T) {
	client := NewClient()

	if _, err := client.USDPerBCH(); err == nil {
		t.Error("USDPerBCH should fail before the first fetch")
	}
}

func TestClient_MalformedAmount(t *testing.T) {
	server := spotServer(t, "not-a-number")

	client := NewClientWithConfig(server.URL, 1)

	if err := client.doFetch(context.Background()); err == nil {
		t.Error("malformed amount should return error")
	}
}

func TestClient_ZeroAmount(t *testing.T) {
	server := spotServer(t, "0")

	client := NewClientWithConfig(server.URL, 1)

	if err := client.doFetch(context.Background()); err == nil {
		t.Error("zero spot price should return error")
	}
}

func TestClient_RetryOnFailure(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"data":{"amount":"100","base":"BCH","currency":"USD"}}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(server.URL, 1)

	if err := client.fetchRate(context.Background()); err != nil {
		t.Fatalf("fetchRate should succeed after retries: %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestClient_StartStop(t *testing.T) {
	server := spotServer(t, "100")

	client := NewClientWithConfig(server.URL, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Initial fetch happens synchronously inside Start
	if _, err := client.USDPerBCH(); err != nil {
		t.Errorf("rate should be available after Start: %v", err)
	}

	// Stop should complete without hanging
	done := make(chan struct{})
	go func() {
		client.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
