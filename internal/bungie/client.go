package bungie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// PlatformBaseURL is the root of the Bungie.net Platform API.
	PlatformBaseURL = "https://www.bungie.net/Platform"

	// ContentBaseURL serves static content such as manifest component
	// tables and emblem images.
	ContentBaseURL = "https://www.bungie.net"
)

// ErrIdentityNotFound is returned when a Bungie name search matches no
// player on any platform.
var ErrIdentityNotFound = errors.New("bungie: no matching player found")

// FetchError wraps a transport or payload failure from one of the fetch
// stages ("identity", "profile", "stats", "definitions").
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// apiEnvelope is the standard Bungie.net response wrapper.
type apiEnvelope struct {
	Response    json.RawMessage `json:"Response"`
	ErrorCode   int             `json:"ErrorCode"`
	ErrorStatus string          `json:"ErrorStatus"`
	Message     string          `json:"Message"`
}

// Client is a Bungie.net Platform API client with rate limiting
type Client struct {
	apiKey          string
	platformBaseURL string
	contentBaseURL  string
	httpClient      *http.Client

	// Simple rate limiter
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a new Bungie API client
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:          apiKey,
		platformBaseURL: PlatformBaseURL,
		contentBaseURL:  ContentBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		// Bungie allows ~25 requests per second per key
		minInterval: 50 * time.Millisecond,
	}
}

// doRequest performs an HTTP request with rate limiting
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	// Simple rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	// Add API key header
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	// Handle rate limiting (429)
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		// Wait and retry once
		time.Sleep(1 * time.Second)
		return c.httpClient.Do(req)
	}

	return resp, nil
}

// get performs a GET request and decodes the enveloped JSON response
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.execute(req, result)
}

// post performs a POST request with a JSON body and decodes the enveloped
// JSON response
func (c *Client) post(ctx context.Context, url string, body interface{}, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.execute(req, result)
}

// execute runs the request and unwraps the Bungie response envelope
func (c *Client) execute(req *http.Request, result interface{}) error {
	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}

	// ErrorCode 1 is Bungie's "Success"
	if envelope.ErrorCode != 1 {
		return fmt.Errorf("%s: %s (code %d)", envelope.ErrorStatus, envelope.Message, envelope.ErrorCode)
	}

	if err := json.Unmarshal(envelope.Response, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// getRaw performs a GET request against a non-enveloped endpoint, such as
// the manifest component tables under ContentBaseURL.
func (c *Client) getRaw(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
