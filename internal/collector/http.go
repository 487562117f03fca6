package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpClient is the shared transport of the collaborator clients.
type httpClient struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func newHTTPClient(name, endpoint, apiKey, proxyURL string, timeout time.Duration) httpClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpClient{
		name:   name,
		url:    endpoint,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// post calls the collaborator and decodes its JSON reply into out. Every
// failure wraps ErrUnavailable.
func (c httpClient) post(ctx context.Context, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %w: status %d, body: %s", c.name, ErrUnavailable, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: decode: %v", c.name, ErrUnavailable, err)
	}
	return nil
}

// HTTPMailbox calls a mailbox-retrieval service that answers {"count": n}.
type HTTPMailbox struct{ c httpClient }

// NewHTTPMailbox creates a mailbox client with optional proxy support.
func NewHTTPMailbox(endpoint, apiKey, proxyURL string, timeout time.Duration) *HTTPMailbox {
	return &HTTPMailbox{c: newHTTPClient("mailbox", endpoint, apiKey, proxyURL, timeout)}
}

func (m *HTTPMailbox) Name() string { return m.c.name }

func (m *HTTPMailbox) Check(ctx context.Context) (int, error) {
	var result struct {
		Count *int `json:"count"`
	}
	if err := m.c.post(ctx, &result); err != nil {
		return 0, err
	}
	if result.Count == nil {
		return 0, fmt.Errorf("%s: %w: reply has no count", m.c.name, ErrUnavailable)
	}
	return *result.Count, nil
}

// HTTPExtractor calls an extraction service that answers {"processed": bool}.
type HTTPExtractor struct{ c httpClient }

// NewHTTPExtractor creates an extraction client named name.
func NewHTTPExtractor(name, endpoint, apiKey, proxyURL string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{c: newHTTPClient(name, endpoint, apiKey, proxyURL, timeout)}
}

func (e *HTTPExtractor) Name() string { return e.c.name }

func (e *HTTPExtractor) Run(ctx context.Context) (bool, error) {
	var result struct {
		Processed bool `json:"processed"`
	}
	if err := e.c.post(ctx, &result); err != nil {
		return false, err
	}
	return result.Processed, nil
}
