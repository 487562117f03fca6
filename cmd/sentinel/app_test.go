package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/pipeline"
	"RiskSentinel/internal/portfolio"
)

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "storage:\n  dir: " + filepath.Join(dir, "artifacts") + "\nhazard:\n  disabled: true\n"
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestNewApp_RerunFromRaw(t *testing.T) {
	ctx := context.Background()
	cfg, err := loadConfig(testConfig(t))
	require.NoError(t, err)

	store, err := openArtifacts(ctx, cfg)
	require.NoError(t, err)
	raw := []model.RiskRecord{{
		Source: "a.json",
		Fields: model.Fields{
			model.FieldInsured:         "Acme Mills",
			model.FieldCurrency:        "KES",
			model.FieldTSI:             100_000_000.0,
			model.FieldShareOfferedPct: 10.0,
		},
	}}
	require.NoError(t, artifact.SaveCollection(ctx, store, artifact.KeyRaw, raw))

	a, err := newApp(ctx, cfg, store, nil)
	require.NoError(t, err)
	defer a.close(ctx)
	_, isStatic := a.book.(*portfolio.StaticBook)
	assert.True(t, isStatic)

	res, err := a.orch.RunFrom(ctx, pipeline.StageEnrich)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	decided, err := pipeline.LoadDecisions(ctx, store)
	require.NoError(t, err)
	require.Len(t, decided, 1)
	assert.Equal(t, "a.json", decided[0].Source)
}

func TestNewConverter_FallbackWithoutKey(t *testing.T) {
	cfg, err := loadConfig(testConfig(t))
	require.NoError(t, err)

	conv := newConverter(cfg)
	assert.Nil(t, conv.Source)
	got, err := conv.Convert(context.Background(), 10, "KES", "KES")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}
