// Package pipeline runs Enrich → Calculate → Decide over the merged records
// and persists every stage's artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/calculator"
	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/enrich"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/portfolio"
	"RiskSentinel/internal/telemetry"
)

// Stage names a pipeline step.
type Stage string

const (
	StageEnrich    Stage = "enrich"
	StageCalculate Stage = "calculate"
	StageDecide    Stage = "decide"
)

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageEnrich, StageCalculate, StageDecide:
		return Stage(s), nil
	case "":
		return StageEnrich, nil
	}
	return "", fmt.Errorf("unknown stage %q (want enrich, calculate or decide)", s)
}

// inputKey is the artifact a stage consumes.
func (s Stage) inputKey() string {
	switch s {
	case StageCalculate:
		return artifact.KeyEnriched
	case StageDecide:
		return artifact.KeyCalculated
	default:
		return artifact.KeyRaw
	}
}

// Snapshotter exposes the merged records and their version.
type Snapshotter interface {
	Snapshot() ([]model.RiskRecord, uint64)
}

// Result describes one orchestrator pass.
type Result struct {
	RunID     string        `json:"run_id"`
	From      Stage         `json:"from"`
	Version   uint64        `json:"version"`
	Records   int           `json:"records"`
	Degraded  int           `json:"degraded"`
	Accepted  int           `json:"accepted"`
	Declined  int           `json:"declined"`
	Skipped   bool          `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Orchestrator sequences the stages. Runs are serialized.
type Orchestrator struct {
	Source     Snapshotter
	Artifacts  artifact.Store
	Enricher   enrich.Enricher
	Calculator calculator.Calculator
	Decider    decision.Decider
	Book       portfolio.Book
	Metrics    *telemetry.Provider

	// OnDecided is called after the decided artifact has been replaced.
	OnDecided func(ctx context.Context, res Result, decided []model.DecisionRecord)

	mu          sync.Mutex
	lastVersion uint64
}

// Run processes the current snapshot. An empty snapshot, or one already
// processed, is a no-op.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	records, version := o.Source.Snapshot()
	if len(records) == 0 || version == o.lastVersion {
		return Result{Skipped: true, Version: version, Records: len(records)}, nil
	}

	res, err := o.runLocked(ctx, StageEnrich, records)
	res.Version = version
	if err != nil {
		return res, err
	}
	o.lastVersion = version
	return res, nil
}

// RunFrom reruns the pipeline starting at stage, reading that stage's input
// from the last persisted artifact.
func (o *Orchestrator) RunFrom(ctx context.Context, stage Stage) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var (
		raw      []model.RiskRecord
		enriched []model.EnrichedRecord
		calc     []model.CalculatedRecord
		err      error
	)
	switch stage {
	case StageEnrich:
		raw, err = artifact.LoadCollection[model.RiskRecord](ctx, o.Artifacts, stage.inputKey())
	case StageCalculate:
		enriched, err = artifact.LoadCollection[model.EnrichedRecord](ctx, o.Artifacts, stage.inputKey())
	case StageDecide:
		calc, err = artifact.LoadCollection[model.CalculatedRecord](ctx, o.Artifacts, stage.inputKey())
	default:
		return Result{}, fmt.Errorf("run from %q: unknown stage", stage)
	}
	if err != nil {
		return Result{From: stage}, fmt.Errorf("load %s: %w", stage.inputKey(), err)
	}

	switch stage {
	case StageEnrich:
		return o.runLocked(ctx, stage, raw)
	case StageCalculate:
		return o.fromEnriched(ctx, o.begin(stage, len(enriched)), enriched)
	default:
		return o.fromCalculated(ctx, o.begin(stage, len(calc)), calc)
	}
}

func (o *Orchestrator) begin(stage Stage, n int) Result {
	res := Result{
		RunID:     uuid.NewString(),
		From:      stage,
		Records:   n,
		StartedAt: time.Now(),
	}
	log.Printf("[INFO] pipeline run %s: %d records from %s", res.RunID, n, stage)
	return res
}

func (o *Orchestrator) runLocked(ctx context.Context, stage Stage, records []model.RiskRecord) (Result, error) {
	res := o.begin(stage, len(records))

	exposures := o.exposures(ctx)
	enriched := make([]model.EnrichedRecord, 0, len(records))
	for _, rec := range records {
		e, err := o.Enricher.Enrich(ctx, rec, exposures)
		if err != nil {
			o.degraded(ctx, &res, StageEnrich, rec, err)
		}
		enriched = append(enriched, e)
	}
	if err := artifact.SaveCollection(ctx, o.Artifacts, artifact.KeyEnriched, enriched); err != nil {
		return o.fail(ctx, res, fmt.Errorf("persist enriched: %w", err))
	}
	return o.fromEnriched(ctx, res, enriched)
}

func (o *Orchestrator) fromEnriched(ctx context.Context, res Result, enriched []model.EnrichedRecord) (Result, error) {
	calc := make([]model.CalculatedRecord, 0, len(enriched))
	for _, rec := range enriched {
		c, err := o.Calculator.Calculate(ctx, rec)
		if err != nil {
			o.degraded(ctx, &res, StageCalculate, rec.RiskRecord, err)
		}
		calc = append(calc, c)
	}
	if err := artifact.SaveCollection(ctx, o.Artifacts, artifact.KeyCalculated, calc); err != nil {
		return o.fail(ctx, res, fmt.Errorf("persist calculated: %w", err))
	}
	return o.fromCalculated(ctx, res, calc)
}

func (o *Orchestrator) fromCalculated(ctx context.Context, res Result, calc []model.CalculatedRecord) (Result, error) {
	decided := make([]model.DecisionRecord, 0, len(calc))
	for _, rec := range calc {
		d := o.Decider.Decide(rec)
		if d.Verdict == model.VerdictAccept {
			res.Accepted++
		} else {
			res.Declined++
		}
		o.Metrics.RecordVerdict(ctx, string(d.Verdict))
		decided = append(decided, d)
	}
	if err := artifact.SaveCollection(ctx, o.Artifacts, artifact.KeyDecisions, decided); err != nil {
		return o.fail(ctx, res, fmt.Errorf("persist decisions: %w", err))
	}

	res.Duration = time.Since(res.StartedAt)
	o.Metrics.RecordRun(ctx, "ok", res.Duration)
	log.Printf("[INFO] pipeline run %s done in %s: %d accepted, %d declined, %d degraded",
		res.RunID, res.Duration.Round(time.Millisecond), res.Accepted, res.Declined, res.Degraded)

	if o.OnDecided != nil {
		o.OnDecided(ctx, res, decided)
	}
	return res, nil
}

func (o *Orchestrator) exposures(ctx context.Context) []float64 {
	if o.Book == nil {
		return portfolio.DefaultExposures
	}
	ex, err := o.Book.Exposures(ctx)
	if err != nil {
		log.Printf("[WARN] portfolio book unavailable, using default exposures: %v", err)
		return portfolio.DefaultExposures
	}
	return ex
}

func (o *Orchestrator) degraded(ctx context.Context, res *Result, stage Stage, rec model.RiskRecord, err error) {
	res.Degraded++
	o.Metrics.RecordDegraded(ctx, string(stage))
	log.Printf("[WARN] %s %s degraded: %v", stage, rec.Source, err)
}

func (o *Orchestrator) fail(ctx context.Context, res Result, err error) (Result, error) {
	res.Duration = time.Since(res.StartedAt)
	o.Metrics.RecordRun(ctx, "error", res.Duration)
	return res, err
}

// ErrNotReady is returned by LoadDecisions before the first run completes.
var ErrNotReady = errors.New("decisions not yet available")

// LoadDecisions reads the current decided artifact.
func LoadDecisions(ctx context.Context, store artifact.Store) ([]model.DecisionRecord, error) {
	recs, err := artifact.LoadCollection[model.DecisionRecord](ctx, store, artifact.KeyDecisions)
	if errors.Is(err, artifact.ErrNotFound) {
		return nil, ErrNotReady
	}
	return recs, err
}
