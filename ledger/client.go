package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
)

// Client is a protocol.Transport backed by a remote ledger node.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ protocol.Transport = (*Client)(nil)

// NewClient creates a client for the ledger node at baseURL. A nil
// httpClient uses one with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) txURL(address crypto.Hash) string {
	return c.baseURL + "/tx/" + address.String()
}

// Publish posts payload to the node.
func (c *Client) Publish(ctx context.Context, address crypto.Hash, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.txURL(address), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	return nil
}

// Fetch reads the payloads stored at address.
func (c *Client) Fetch(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.txURL(address), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, protocol.ErrNotFound
	default:
		return nil, statusError(resp)
	}

	var fetched FetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return nil, fmt.Errorf("decoding ledger response: %w", err)
	}
	if len(fetched.Payloads) == 0 {
		return nil, protocol.ErrNotFound
	}
	return fetched.Payloads, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
