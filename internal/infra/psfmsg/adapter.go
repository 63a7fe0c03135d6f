// Package psfmsg sends end-to-end encrypted messages to BCH addresses via
// a wallet-consumer REST service: the ciphertext is written to a
// content-addressed store, then a small on-chain signal transaction points
// the recipient at it. Messages are read with the psf-bch-wallet CLI.
package psfmsg

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"merchant_go/internal/domain"
)

// AppID tags every uploaded message so the recipient can filter entries.
const AppID = "merchant-new-order"

// DefaultGracePeriod is how long SendSignal waits before building the
// signal transaction, letting the indexer settle the funding credential's
// UTXO view after the upload that just spent from it.
const DefaultGracePeriod = 2 * time.Second

// Adapter implements domain.SecureNotifier over the consumer API.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
	grace      time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewAdapter creates an adapter for the consumer API at baseURL.
func NewAdapter(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		grace: DefaultGracePeriod,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// EncryptAndUpload resolves the recipient's public key, encrypts the
// message with it, and writes the ciphertext to the content-addressed
// store funded by wif. Returns the content hash identifying the entry.
func (a *Adapter) EncryptAndUpload(ctx context.Context, bchAddr, message, wif string) (string, error) {
	pubKey, err := a.getPubKey(ctx, bchAddr)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %s", domain.ErrRecipientKey, bchAddr, err)
	}

	encrypted, err := a.encryptMsg(ctx, pubKey, message)
	if err != nil {
		return "", err
	}

	return a.upload(ctx, encrypted, wif)
}

// SendSignal broadcasts the on-chain signal referencing hash, funded by
// wif. The transaction is built only after the grace period.
func (a *Adapter) SendSignal(ctx context.Context, bchAddr, subject, hash, wif string) (string, error) {
	if hash == "" || bchAddr == "" || subject == "" {
		return "", fmt.Errorf("%w: hash, address and subject are required", domain.ErrSignalBuild)
	}

	// Let the indexer catch up with the upload spend
	if err := a.sleep(ctx, a.grace); err != nil {
		return "", err
	}

	var signal struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Hex     string `json:"hex"`
	}
	err := a.post(ctx, "/msg/signal", map[string]string{
		"hash":    hash,
		"address": bchAddr,
		"subject": subject,
		"wif":     wif,
	}, &signal)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSignalBuild, err)
	}
	if !signal.Success || signal.Hex == "" {
		// An empty transaction is a hard failure, never a silent no-op
		return "", fmt.Errorf("%w: %s", domain.ErrSignalBuild, orUnknown(signal.Message))
	}

	var broadcast struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		TxID    string `json:"txid"`
	}
	if err := a.post(ctx, "/bch/broadcast", map[string]string{"hex": signal.Hex}, &broadcast); err != nil {
		return "", fmt.Errorf("broadcast signal: %w", err)
	}
	if !broadcast.Success || broadcast.TxID == "" {
		return "", fmt.Errorf("broadcast signal: %s", orUnknown(broadcast.Message))
	}

	return broadcast.TxID, nil
}

// getPubKey resolves the recipient's public key from the chain. It only
// works for addresses with at least one outgoing transaction.
func (a *Adapter) getPubKey(ctx context.Context, bchAddr string) (string, error) {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		PubKey  string `json:"pubkey"`
	}
	if err := a.post(ctx, "/bch/pubkey", map[string]string{"address": bchAddr}, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.PubKey == "" {
		return "", fmt.Errorf("%s", orUnknown(resp.Message))
	}
	return resp.PubKey, nil
}

// encryptMsg hex-encodes the message and has the wallet service encrypt
// it with the recipient's public key.
func (a *Adapter) encryptMsg(ctx context.Context, pubKey, msg string) (string, error) {
	if pubKey == "" {
		return "", fmt.Errorf("%w: pubKey must be a non-empty string", domain.ErrEncryption)
	}
	if msg == "" {
		return "", fmt.Errorf("%w: msg must be a non-empty string", domain.ErrEncryption)
	}

	payload := hex.EncodeToString([]byte(msg))

	var resp struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Encrypted string `json:"encryptedPayload"`
	}
	err := a.post(ctx, "/msg/encrypt", map[string]string{
		"pubkey":  pubKey,
		"payload": payload,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrEncryption, err)
	}
	if !resp.Success || resp.Encrypted == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrEncryption, orUnknown(resp.Message))
	}
	return resp.Encrypted, nil
}

// upload writes the ciphertext to the content-addressed store, funded by
// wif so each order pays for its own notification.
func (a *Adapter) upload(ctx context.Context, encrypted, wif string) (string, error) {
	entry := map[string]any{
		"appId": AppID,
		"wif":   wif,
		"data": map[string]any{
			"now":  time.Now().UTC().Format(time.RFC3339),
			"data": encrypted,
		},
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Hash    string `json:"hash"`
	}
	if err := a.post(ctx, "/p2wdb/write", entry, &resp); err != nil {
		return "", fmt.Errorf("upload message: %w", err)
	}
	if !resp.Success || resp.Hash == "" {
		return "", fmt.Errorf("upload message: %s", orUnknown(resp.Message))
	}
	return resp.Hash, nil
}

// post sends a JSON body to the consumer API and decodes the response.
func (a *Adapter) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status code %d", path, resp.StatusCode)
	}

	return json.Unmarshal(raw, out)
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return msg
}
