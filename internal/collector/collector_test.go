package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskSentinel/internal/model"
)

func TestHTTPMailbox_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Write([]byte(`{"count": 4}`))
	}))
	defer srv.Close()

	n, err := NewHTTPMailbox(srv.URL, "k", "", time.Second).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestHTTPMailbox_MissingCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPMailbox(srv.URL, "", "", time.Second).Check(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPExtractor_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPExtractor("fields", srv.URL, "", "", time.Second).Run(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPExtractor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPExtractor("text", srv.URL, "", "", 0).Run(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPExtractor_Processed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"processed": true}`))
	}))
	defer srv.Close()

	e := NewHTTPExtractor("text", srv.URL, "", "", time.Second)
	ok, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "text", e.Name())
}

func TestMocks(t *testing.T) {
	m := &MockMailbox{Counts: []int{1, 3}}
	a, _ := m.Check(context.Background())
	b, _ := m.Check(context.Background())
	c, _ := m.Check(context.Background())
	assert.Equal(t, []int{1, 3, 3}, []int{a, b, c})
	assert.Equal(t, 3, m.Calls())

	hooked := false
	e := &MockExtractor{Processed: true, OnRun: func() { hooked = true }}
	ok, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hooked)

	e = &MockExtractor{Err: errors.New("boom")}
	_, err = e.Run(context.Background())
	assert.Error(t, err)
}

func TestFieldValidator(t *testing.T) {
	v, err := NewFieldValidator()
	require.NoError(t, err)

	fields, err := v.Decode([]byte(`{"Insured": "Acme", "TSI_Original_Currency": 1000000, "PML_Pct": "25", "Share_Offered_Pct": null}`))
	require.NoError(t, err)
	assert.Equal(t, 1e6, fields.Float(model.FieldTSI))
	assert.Equal(t, 25.0, fields.Float(model.FieldPMLPct))

	bad := []string{
		`{"Insured": "Acme"} {"Insured": "Other"}`,
		`[1, 2]`,
		`"text"`,
		`{}`,
		`{"TSI_Original_Currency": {"amount": 5}}`,
		`{"Insured": 42}`,
		`{"Insured": "x"`,
	}
	for _, b := range bad {
		_, err := v.Decode([]byte(b))
		assert.Error(t, err, b)
	}
}

func TestScanner_OrderAndIdentity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub-2"), 0o755))

	write := func(rel string, age time.Duration) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.WriteFile(p, []byte(`{"Insured":"x"}`), 0o644))
		ts := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(p, ts, ts))
	}
	write("newest.json", time.Minute)
	write("sub-2/oldest.JSON", time.Hour)
	write("notes.txt", 2*time.Hour)
	write(".partial.json", 3*time.Hour)

	got, err := (&Scanner{Dir: dir}).Scan()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sub-2/oldest.JSON", got[0].SourceID)
	assert.Equal(t, "newest.json", got[1].SourceID)

	data, err := got[1].Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"Insured":"x"}`, string(data))
}

func TestScanner_MissingDir(t *testing.T) {
	got, err := (&Scanner{Dir: filepath.Join(t.TempDir(), "nope")}).Scan()
	require.NoError(t, err)
	assert.Empty(t, got)
}
