package fulcrum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"merchant_go/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	dialTimeout    = 10 * time.Second
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
	baseDelay      = 1 * time.Second
)

// rpcRequest is an Electrum-protocol JSON-RPC call.
type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// balanceResult is the blockchain.address.get_balance payload, in satoshis.
type balanceResult struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// Client queries a Fulcrum (ElectrumX-protocol) server over websocket for
// confirmed address balances. Calls are serialized on a single connection;
// a failed call drops the connection and redials on the next attempt.
type Client struct {
	url    string
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// NewClient creates a new Fulcrum client. The connection is established
// lazily on the first call.
func NewClient(wsURL string) *Client {
	return &Client{url: wsURL}
}

// ConfirmedBalance returns the confirmed balance of addr in BCH.
func (c *Client) ConfirmedBalance(ctx context.Context, addr string) (decimal.Decimal, error) {
	if addr == "" {
		return decimal.Zero, fmt.Errorf("address must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << uint(attempt-1)
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.call(ctx, "blockchain.address.get_balance", addr)
		if err != nil {
			lastErr = err
			c.reset()
			slog.Warn("Balance query attempt failed",
				slog.String("address", addr),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}

		var bal balanceResult
		if err := json.Unmarshal(result, &bal); err != nil {
			return decimal.Zero, fmt.Errorf("malformed balance result: %w", err)
		}
		return domain.SatsToBCH(bal.Confirmed), nil
	}
	return decimal.Zero, lastErr
}

// call performs one JSON-RPC round trip, dialing if needed. Must be
// called with c.mu held.
func (c *Client) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return nil, err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}

	c.nextID++
	req := rpcRequest{ID: c.nextID, Method: method, Params: params}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(&req); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		var resp rpcResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("read %s: %w", method, err)
		}
		// Skip server notifications and stale replies
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%s: server error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	slog.Info("Connected to Fulcrum", slog.String("url", c.url))
	return nil
}

// reset drops the connection so the next call redials. Must be called
// with c.mu held.
func (c *Client) reset() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts down the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
