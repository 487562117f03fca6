// Package fx converts amounts between currencies using live OANDA rates with
// a static fallback table.
package fx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// DefaultBase is the currency every amount is normalized into.
const DefaultBase = "KES"

// ErrInvalidCurrency is returned for an empty currency code.
var ErrInvalidCurrency = errors.New("invalid currency code")

// FallbackRates are approximate units of DefaultBase per unit of currency.
var FallbackRates = map[string]float64{
	"USD": 150.0,
	"EUR": 165.0,
	"GBP": 190.0,
	"EGP": 3.2,
	"PHP": 2.7,
	"INR": 1.8,
	"ZAR": 8.0,
	"TZS": 0.065,
	"UGX": 0.04,
}

// RateSource quotes a live exchange rate.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, error)
	Name() string
}

// Converter normalizes amounts. A non-nil error from Convert means the live
// source failed and the fallback table was used; the amount is still valid.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

type pair struct{ from, to string }

// CachedConverter asks Source once per currency pair and remembers the
// answer for the life of the process. Fallback answers are remembered too so
// a dead source costs one timeout per pair.
type CachedConverter struct {
	Source   RateSource
	Base     string
	Fallback map[string]float64

	mu    sync.Mutex
	cache map[pair]float64
}

// NewConverter creates a converter. source may be nil to use only the
// fallback table.
func NewConverter(source RateSource, base string) *CachedConverter {
	if base == "" {
		base = DefaultBase
	}
	return &CachedConverter{
		Source:   source,
		Base:     strings.ToUpper(base),
		Fallback: FallbackRates,
		cache:    make(map[pair]float64),
	}
}

func (c *CachedConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	rate, err := c.Rate(ctx, from, to)
	return amount * rate, err
}

// Rate returns units of to per unit of from.
func (c *CachedConverter) Rate(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 1, fmt.Errorf("rate %q->%q: %w", from, to, ErrInvalidCurrency)
	}
	if from == to {
		return 1, nil
	}

	key := pair{from, to}
	c.mu.Lock()
	if r, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	var srcErr error
	if c.Source != nil {
		r, err := c.Source.Rate(ctx, from, to)
		if err == nil && r > 0 {
			c.store(key, r)
			return r, nil
		}
		if err == nil {
			err = fmt.Errorf("non-positive rate %v", r)
		}
		srcErr = fmt.Errorf("%s rate %s->%s: %w", c.Source.Name(), from, to, err)
	} else {
		srcErr = fmt.Errorf("no live rate source for %s->%s", from, to)
	}

	r := c.fallbackRate(from, to)
	log.Printf("[WARN] using fallback rate %s->%s = %g: %v", from, to, r, srcErr)
	c.store(key, r)
	return r, srcErr
}

func (c *CachedConverter) store(key pair, r float64) {
	c.mu.Lock()
	c.cache[key] = r
	c.mu.Unlock()
}

// fallbackRate crosses through the base currency. Unknown currencies are
// treated as par with the base.
func (c *CachedConverter) fallbackRate(from, to string) float64 {
	toBase := func(cur string) float64 {
		if cur == c.Base {
			return 1
		}
		if r, ok := c.Fallback[cur]; ok && r > 0 {
			return r
		}
		return 1
	}
	return toBase(from) / toBase(to)
}

// FixedConverter applies a constant rate table (units of the target per
// unit of the key currency) and never fails. Used in tests and dry runs.
type FixedConverter map[string]float64

func (f FixedConverter) Convert(_ context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to || from == "" {
		return amount, nil
	}
	r, ok := f[from]
	if !ok {
		return amount, nil
	}
	return amount * r, nil
}
