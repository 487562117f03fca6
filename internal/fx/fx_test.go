package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	rate  float64
	err   error
	calls atomic.Int32
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Rate(context.Context, string, string) (float64, error) {
	s.calls.Add(1)
	return s.rate, s.err
}

func TestCachedConverter_Identity(t *testing.T) {
	src := &countingSource{rate: 99}
	c := NewConverter(src, "KES")

	got, err := c.Convert(context.Background(), 1234.5, "kes", "KES")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, got)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestCachedConverter_CachesLiveRate(t *testing.T) {
	src := &countingSource{rate: 129.5}
	c := NewConverter(src, "KES")

	for i := 0; i < 3; i++ {
		got, err := c.Convert(context.Background(), 2, "USD", "KES")
		require.NoError(t, err)
		assert.Equal(t, 259.0, got)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCachedConverter_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     float64
	}{
		{"to base", "USD", "KES", 150},
		{"from base", "KES", "GBP", 1.0 / 190},
		{"cross", "EUR", "USD", 165.0 / 150},
		{"unknown is par", "XYZ", "KES", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingSource{err: errors.New("down")}
			c := NewConverter(src, "KES")

			r, err := c.Rate(context.Background(), tt.from, tt.to)
			require.Error(t, err)
			assert.InDelta(t, tt.want, r, 1e-12)

			// Second lookup is served from cache without an error.
			r2, err := c.Rate(context.Background(), tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, r, r2)
			assert.Equal(t, int32(1), src.calls.Load())
		})
	}
}

func TestCachedConverter_NoSource(t *testing.T) {
	c := NewConverter(nil, "")
	got, err := c.Convert(context.Background(), 10, "USD", "KES")
	assert.Error(t, err)
	assert.Equal(t, 1500.0, got)
}

func TestCachedConverter_EmptyCurrency(t *testing.T) {
	c := NewConverter(nil, "KES")
	_, err := c.Rate(context.Background(), "", "KES")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestOandaClient_Rate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rates/latest.json", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"quotes":{"KES":"128.75","EUR":0.92}}`))
	}))
	defer srv.Close()

	o := NewOandaClient(srv.URL+"/", "secret", time.Second, "")
	r, err := o.Rate(context.Background(), "USD", "KES")
	require.NoError(t, err)
	assert.Equal(t, 128.75, r)

	_, err = o.Rate(context.Background(), "USD", "GBP")
	assert.Error(t, err)
}

func TestOandaClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOandaClient(srv.URL, "k", time.Second, "")
	_, err := o.Rate(context.Background(), "USD", "KES")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFixedConverter(t *testing.T) {
	f := FixedConverter{"USD": 100}
	got, err := f.Convert(context.Background(), 3, "usd", "KES")
	require.NoError(t, err)
	assert.Equal(t, 300.0, got)

	got, _ = f.Convert(context.Background(), 3, "", "KES")
	assert.Equal(t, 3.0, got)
}
