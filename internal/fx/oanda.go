package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOandaURL = "https://exchange-rates-api.oanda.com/v2"

// OandaClient reads end-of-day rates from the OANDA Exchange Rates API.
type OandaClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewOandaClient creates a client with optional proxy support.
func NewOandaClient(baseURL, apiKey string, timeout time.Duration, proxyURL string) *OandaClient {
	if baseURL == "" {
		baseURL = defaultOandaURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &OandaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (o *OandaClient) Name() string { return "oanda" }

type oandaLatest struct {
	Quotes map[string]json.Number `json:"quotes"`
}

func (o *OandaClient) Rate(ctx context.Context, from, to string) (float64, error) {
	q := url.Values{}
	q.Set("api_key", o.APIKey)
	q.Set("base", from)
	endpoint := o.BaseURL + "/rates/latest.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch latest rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("fetch latest rates: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result oandaLatest
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode latest rates: %w", err)
	}
	n, ok := result.Quotes[to]
	if !ok {
		return 0, fmt.Errorf("no quote for %s in %s response", to, from)
	}
	return n.Float64()
}
