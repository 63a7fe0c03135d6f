package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// spotResponse represents the Coinbase spot-price API response
type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// Client fetches the USD price of one BCH and caches the latest value.
// Orders are quoted from the cache so a slow rate API never blocks a
// customer request.
type Client struct {
	rate         decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	apiURL       string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewClient creates a new spot-price client with defaults.
func NewClient() *Client {
	return &Client{
		rate:         decimal.Zero,
		pollInterval: 60 * time.Second,
		apiURL:       "https://api.coinbase.com/v2/prices/BCH-USD/spot",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(apiURL string, pollIntervalSec int) *Client {
	client := NewClient()
	if apiURL != "" {
		client.apiURL = apiURL
	}
	if pollIntervalSec > 0 {
		client.pollInterval = time.Duration(pollIntervalSec) * time.Second
	}
	return client
}

// Start begins polling for spot-price updates
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Fetch immediately on start so the first order can be quoted
	if err := c.fetchRate(ctx); err != nil {
		slog.Warn("Initial spot price fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Spot price polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Spot price polling stopped")
				return
			case <-ticker.C:
				if err := c.fetchRate(ctx); err != nil {
					slog.Warn("Spot price fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchRate fetches the current spot price with retry logic
func (c *Client) fetchRate(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Spot price fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (c *Client) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var data spotResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}

	newRate, err := decimal.NewFromString(data.Data.Amount)
	if err != nil {
		return fmt.Errorf("malformed spot price %q: %w", data.Data.Amount, err)
	}
	if newRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("non-positive spot price: %s", newRate)
	}

	c.mu.Lock()
	oldRate := c.rate
	c.rate = newRate
	c.mu.Unlock()

	if !oldRate.Equal(newRate) {
		slog.Info("Spot price updated",
			slog.String("usd_per_bch", newRate.String()),
			slog.String("old", oldRate.String()),
		)
	}

	return nil
}

// Stop stops the polling
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
}

// USDPerBCH returns the cached spot price. It fails until the first
// successful fetch: quoting an order without a rate would be wrong.
func (c *Client) USDPerBCH() (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("spot price not yet available")
	}
	return c.rate, nil
}
