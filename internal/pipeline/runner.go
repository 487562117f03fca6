package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Runner executes orchestrator passes on demand from a single goroutine.
// Triggers that arrive during a run coalesce into one follow-up run.
type Runner struct {
	orch    *Orchestrator
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a runner for o.
func NewRunner(o *Orchestrator) *Runner {
	return &Runner{orch: o, trigger: make(chan struct{}, 1)}
}

// Trigger requests a run without blocking.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the loop until ctx is cancelled. A run in flight at
// cancellation finishes so its artifacts are complete.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				log.Println("[INFO] pipeline runner stopped")
				return
			case <-r.trigger:
				res, err := r.runOnce(context.WithoutCancel(ctx))
				if err != nil {
					log.Printf("[ERROR] pipeline run %s failed: %v", res.RunID, err)
				}
			}
		}
	}()
}

// runOnce runs the orchestrator, reporting a panic as a failed run.
func (r *Runner) runOnce(ctx context.Context) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.orch.Metrics.RecordRun(ctx, "panic", 0)
			err = fmt.Errorf("pipeline panicked: %v", p)
		}
	}()
	return r.orch.Run(ctx)
}

// Wait blocks until the loop has exited.
func (r *Runner) Wait() { r.wg.Wait() }
