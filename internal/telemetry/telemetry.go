// Package telemetry owns the OpenTelemetry meter provider and the pipeline
// instruments.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "riskSentinel"

// Config configures metric export. An empty OTLPEndpoint keeps metrics
// in-process.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
	Interval     time.Duration
}

// Provider records pipeline, watcher and decision metrics. A nil *Provider
// is valid and records nothing.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	merged      metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	degraded    metric.Int64Counter
	verdicts    metric.Int64Counter
	faults      metric.Int64Counter
}

// New builds the provider, exporting over OTLP/gRPC when an endpoint is set.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "risk-sentinel"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		expOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval)),
		))
		log.Printf("[INFO] exporting metrics to %s every %s", cfg.OTLPEndpoint, cfg.Interval)
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return newProvider(mp)
}

// NewWithReader builds a provider over a caller-owned reader.
func NewWithReader(reader sdkmetric.Reader) (*Provider, error) {
	return newProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
}

func newProvider(mp *sdkmetric.MeterProvider) (*Provider, error) {
	p := &Provider{meterProvider: mp, meter: mp.Meter(meterName)}

	var err error
	if p.merged, err = p.meter.Int64Counter("sentinel.records.merged",
		metric.WithDescription("Raw records accepted by the merge store"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if p.runs, err = p.meter.Int64Counter("sentinel.pipeline.runs",
		metric.WithDescription("Pipeline runs by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if p.runDuration, err = p.meter.Float64Histogram("sentinel.pipeline.duration",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		return nil, err
	}
	if p.degraded, err = p.meter.Int64Counter("sentinel.records.degraded",
		metric.WithDescription("Records carried through a stage with fallback values"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if p.verdicts, err = p.meter.Int64Counter("sentinel.decisions",
		metric.WithDescription("Decisions by verdict"),
		metric.WithUnit("{decision}"),
	); err != nil {
		return nil, err
	}
	if p.faults, err = p.meter.Int64Counter("sentinel.watcher.faults",
		metric.WithDescription("Watcher cycles that backed off"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) RecordMerged(ctx context.Context, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.merged.Add(ctx, int64(n))
}

func (p *Provider) RecordRun(ctx context.Context, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	p.runs.Add(ctx, 1, attrs)
	p.runDuration.Record(ctx, d.Seconds(), attrs)
}

func (p *Provider) RecordDegraded(ctx context.Context, stage string) {
	if p == nil {
		return
	}
	p.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (p *Provider) RecordVerdict(ctx context.Context, verdict string) {
	if p == nil {
		return
	}
	p.verdicts.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}

func (p *Provider) RecordWatcherFault(ctx context.Context, step string) {
	if p == nil {
		return
	}
	p.faults.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
