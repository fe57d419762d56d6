// Package signer talks to the signing enclave and defines the signature
// policy applied to bridge writes. The enclave is treated as opaque: this
// package never sees private keys, only key references and addresses.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Policy controls what happens when signing fails.
type Policy int

const (
	// PolicyBestEffort swallows signing failures; the write proceeds
	// without a signature bundle.
	PolicyBestEffort Policy = iota
	// PolicyRequired makes any signing failure fatal to the request.
	PolicyRequired
)

func (p Policy) String() string {
	if p == PolicyRequired {
		return "required"
	}
	return "best-effort"
}

// Signature is the bundle returned by the enclave for one payload.
type Signature struct {
	Chain       string `json:"chain"`
	Alg         string `json:"alg"`
	KeyRef      string `json:"keyRef"`
	Address     string `json:"address"`
	Key         string `json:"key,omitempty"`
	Signature   string `json:"signature"`
	PayloadHash string `json:"payloadHash"`
	SignedAt    string `json:"signedAt"`
}

// VerifyPayloadHash recomputes the hash over payload and checks it against
// the bundle. A mismatch means the enclave signed different bytes than the
// caller serialized, and the bundle must not be trusted.
func (s *Signature) VerifyPayloadHash(payload []byte) error {
	want := PayloadHash(payload)
	if s.PayloadHash != want {
		return fmt.Errorf("payload hash mismatch: enclave signed %s, caller computed %s",
			s.PayloadHash, want)
	}
	return nil
}

// SignRequest asks the enclave for a signature over payload with the key
// behind keyRef.
type SignRequest struct {
	KeyRef         string `json:"keyRef"`
	Payload        string `json:"payload"`
	Address        string `json:"address,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Client is an HTTP client for the signing enclave.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a signing enclave client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// SignMessagePayload signs payload with the key behind req.KeyRef and
// verifies the returned payload hash before handing the bundle back.
func (c *Client) SignMessagePayload(ctx context.Context, req SignRequest) (*Signature, error) {
	var sig Signature
	if err := c.post(ctx, "/v1/sign", req, &sig); err != nil {
		return nil, err
	}
	if err := sig.VerifyPayloadHash([]byte(req.Payload)); err != nil {
		return nil, err
	}
	if sig.SignedAt == "" {
		sig.SignedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return &sig, nil
}

// GetWalletAddress returns the public address for a key reference,
// provisioning the key on first use.
func (c *Client) GetWalletAddress(ctx context.Context, keyRef string) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := c.post(ctx, "/v1/address", map[string]string{"keyRef": keyRef}, &resp); err != nil {
		return "", err
	}
	if resp.Address == "" {
		return "", fmt.Errorf("enclave returned empty address for %s", keyRef)
	}
	return resp.Address, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enclave request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var remote struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &remote) == nil && remote.Error != "" {
			return fmt.Errorf("enclave: %s", remote.Error)
		}
		return fmt.Errorf("enclave request failed (%d)", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode enclave response: %w", err)
	}
	return nil
}
