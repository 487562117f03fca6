// Package riskdata talks to the external risk-data collaborators used by
// enrichment: location hazard lookups and industry market rates.
package riskdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"RiskSentinel/internal/model"
)

// HazardLookup grades catastrophe perils at a location.
type HazardLookup interface {
	Exposure(ctx context.Context, lat, lon float64) (model.HazardProfile, error)
	Name() string
}

const defaultUSGSURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

// USGSClient derives the earthquake grade from recent seismic events near a
// location. Flood and typhoon grades are fixed.
type USGSClient struct {
	BaseURL  string
	RadiusKM int
	Client   *http.Client
	Limiter  *rate.Limiter
}

// NewUSGSClient creates a client limited to ratePerSec requests per second.
func NewUSGSClient(baseURL string, radiusKM int, ratePerSec float64, timeout time.Duration, proxyURL string) *USGSClient {
	if baseURL == "" {
		baseURL = defaultUSGSURL
	}
	if radiusKM <= 0 {
		radiusKM = 100
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
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
	return &USGSClient{
		BaseURL:  baseURL,
		RadiusKM: radiusKM,
		Client:   &http.Client{Timeout: timeout, Transport: transport},
		Limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (c *USGSClient) Name() string { return "usgs" }

type usgsFeed struct {
	Features []struct {
		Properties struct {
			Mag *float64 `json:"mag"`
		} `json:"properties"`
	} `json:"features"`
}

func (c *USGSClient) Exposure(ctx context.Context, lat, lon float64) (model.HazardProfile, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("usgs rate limit: %w", err)
		}
	}

	q := url.Values{}
	q.Set("format", "geojson")
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("maxradiuskm", strconv.Itoa(c.RadiusKM))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usgs: status %d, body: %s", resp.StatusCode, string(body))
	}

	var feed usgsFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("usgs decode: %w", err)
	}
	var mags []float64
	for _, f := range feed.Features {
		if f.Properties.Mag != nil {
			mags = append(mags, *f.Properties.Mag)
		}
	}

	profile := model.DefaultHazardProfile()
	profile[model.PerilEarthquake] = GradeEarthquake(mags)
	return profile, nil
}

// GradeEarthquake maps the mean magnitude of nearby events to a level:
// >= 6.0 High, >= 4.0 Moderate, otherwise (or no events) Low.
func GradeEarthquake(magnitudes []float64) model.Level {
	if len(magnitudes) == 0 {
		return model.LevelLow
	}
	sum := 0.0
	for _, m := range magnitudes {
		sum += m
	}
	avg := sum / float64(len(magnitudes))
	switch {
	case avg >= 6.0:
		return model.LevelHigh
	case avg >= 4.0:
		return model.LevelModerate
	default:
		return model.LevelLow
	}
}

// StaticHazard always answers with the same profile. Used when no hazard
// service is configured and in tests.
type StaticHazard struct {
	Profile model.HazardProfile
	Err     error
}

func (s StaticHazard) Name() string { return "static" }

func (s StaticHazard) Exposure(_ context.Context, _, _ float64) (model.HazardProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Profile == nil {
		return model.DefaultHazardProfile(), nil
	}
	out := make(model.HazardProfile, len(s.Profile))
	for k, v := range s.Profile {
		out[k] = v
	}
	return out, nil
}
