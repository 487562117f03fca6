package main

import (
	"context"
	"fmt"
	"log"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/calculator"
	"RiskSentinel/internal/config"
	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/enrich"
	"RiskSentinel/internal/fx"
	"RiskSentinel/internal/pipeline"
	"RiskSentinel/internal/portfolio"
	"RiskSentinel/internal/riskdata"
	"RiskSentinel/internal/telemetry"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.Config
	artifacts artifact.Store
	book      portfolio.Book
	metrics   *telemetry.Provider
	orch      *pipeline.Orchestrator
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func openArtifacts(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	if cfg.Storage.Backend == "s3" {
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:   cfg.Storage.S3.Bucket,
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
			Prefix:   cfg.Storage.S3.Prefix,
		})
	}
	return artifact.NewFileStore(cfg.Storage.Dir)
}

func openBook(cfg *config.Config) (portfolio.Book, error) {
	if cfg.Portfolio.SQLitePath == "" {
		return portfolio.NewStaticBook(), nil
	}
	return portfolio.NewSQLiteBook(cfg.Portfolio.SQLitePath)
}

func newConverter(cfg *config.Config) *fx.CachedConverter {
	if cfg.FX.APIKey == "" {
		log.Println("[INFO] fx: no api key, using fallback rate table")
		return fx.NewConverter(nil, cfg.FX.BaseCurrency)
	}
	src := fx.NewOandaClient(cfg.FX.BaseURL, cfg.FX.APIKey, cfg.FX.Timeout, cfg.Proxy)
	log.Printf("[INFO] fx: live rates from %s", src.Name())
	return fx.NewConverter(src, cfg.FX.BaseCurrency)
}

func newHazard(cfg *config.Config) riskdata.HazardLookup {
	if cfg.Hazard.Disabled {
		return riskdata.StaticHazard{}
	}
	return riskdata.NewUSGSClient(cfg.Hazard.BaseURL, cfg.Hazard.RadiusKM, cfg.Hazard.RatePerSec, cfg.FX.Timeout, cfg.Proxy)
}

// newApp builds metrics and the orchestrator over store. src may be nil for
// commands that only rerun from persisted artifacts.
func newApp(ctx context.Context, cfg *config.Config, store artifact.Store, src pipeline.Snapshotter) (*app, error) {
	log.Printf("[INFO] artifact store: %s", store.Name())

	book, err := openBook(cfg)
	if err != nil {
		return nil, fmt.Errorf("init portfolio book: %w", err)
	}

	metrics, err := telemetry.New(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		log.Printf("[WARN] telemetry disabled: %v", err)
		metrics = nil
	}

	base := cfg.FX.BaseCurrency
	orch := &pipeline.Orchestrator{
		Source:     src,
		Artifacts:  store,
		Enricher:   enrich.NewStage(newHazard(cfg), riskdata.NewBandRates(nil, nil)),
		Calculator: calculator.NewStage(newConverter(cfg), base),
		Decider:    decision.NewEngine(base),
		Book:       book,
		Metrics:    metrics,
	}
	return &app{cfg: cfg, artifacts: store, book: book, metrics: metrics, orch: orch}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.book.Close(); err != nil {
		log.Printf("[WARN] close portfolio book: %v", err)
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		log.Printf("[WARN] telemetry shutdown: %v", err)
	}
}
