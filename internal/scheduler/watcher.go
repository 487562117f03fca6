package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"RiskSentinel/internal/collector"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/telemetry"
)

// Merger is the part of the merge store the watcher drives.
type Merger interface {
	Seen(sourceID string) bool
	TryMerge(ctx context.Context, sourceID string, fields model.Fields) (bool, error)
	Len() int
}

// Trigger requests a pipeline run without blocking.
type Trigger interface {
	Trigger()
}

// Watcher polls the ingestion collaborators and merges every new
// structured-fields artifact exactly once. All merge-store mutation happens
// on the goroutine running Run.
type Watcher struct {
	Mailbox        collector.Mailbox
	TextExtractor  collector.Extractor
	FieldExtractor collector.Extractor
	Scanner        *collector.Scanner
	Validator      *collector.FieldValidator
	Store          Merger
	Runner         Trigger
	Metrics        *telemetry.Provider

	PollInterval time.Duration
	Backoff      time.Duration
	CallTimeout  time.Duration

	lastCount int
	rejected  map[string]time.Time
}

func (w *Watcher) defaults() {
	if w.PollInterval <= 0 {
		w.PollInterval = 2 * time.Second
	}
	if w.Backoff <= 0 {
		w.Backoff = 60 * time.Second
	}
	if w.CallTimeout <= 0 {
		w.CallTimeout = 30 * time.Second
	}
	if w.rejected == nil {
		w.rejected = make(map[string]time.Time)
	}
}

// Run loops until ctx is cancelled: one cycle, then the short poll interval
// on success or the long backoff on failure.
func (w *Watcher) Run(ctx context.Context) {
	w.defaults()
	log.Printf("[INFO] watcher started: poll %s, backoff %s, call timeout %s", w.PollInterval, w.Backoff, w.CallTimeout)

	var n int
	err := w.guard(ctx, "mailbox", func() (err error) {
		n, err = w.checkMailbox(ctx)
		return err
	})
	if err != nil {
		log.Printf("[WARN] initial mailbox check failed: %v", err)
	} else {
		w.lastCount = n
		log.Printf("[INFO] current submissions: %d", n)
	}
	if w.Store.Len() > 0 {
		log.Printf("[INFO] %d records already merged, running initial pipeline", w.Store.Len())
		w.Runner.Trigger()
	}

	for {
		delay := w.PollInterval
		err := w.guard(ctx, "cycle", func() error {
			_, err := w.Cycle(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[ERROR] watcher cycle: %v (retrying in %s)", err, w.Backoff)
			delay = w.Backoff
		}
		select {
		case <-ctx.Done():
			log.Println("[INFO] watcher stopped")
			return
		case <-time.After(delay):
		}
	}
	log.Println("[INFO] watcher stopped")
}

// guard runs fn and turns a panic into an error so one faulty cycle never
// ends the loop.
func (w *Watcher) guard(ctx context.Context, step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.Metrics.RecordWatcherFault(ctx, "panic")
			err = fmt.Errorf("%s panicked: %v", step, r)
		}
	}()
	return fn()
}

// Cycle runs one poll: mailbox, then extraction when the submission count
// grew, then a scan-and-merge of the structured-fields artifacts. It returns
// how many records were merged.
func (w *Watcher) Cycle(ctx context.Context) (int, error) {
	w.defaults()

	count, err := w.checkMailbox(ctx)
	if err != nil {
		w.Metrics.RecordWatcherFault(ctx, "mailbox")
		return 0, err
	}

	if count > w.lastCount {
		log.Printf("[INFO] new submissions detected: %d", count-w.lastCount)
		if err := w.extract(ctx); err != nil {
			return 0, err
		}
		// Only advanced once extraction succeeded so a failed batch is retried.
		w.lastCount = count
	}

	merged, err := w.mergeNew(ctx)
	if merged > 0 {
		w.Metrics.RecordMerged(ctx, merged)
		log.Printf("[INFO] merged %d new records (%d total), triggering pipeline", merged, w.Store.Len())
		w.Runner.Trigger()
	}
	if err != nil {
		w.Metrics.RecordWatcherFault(ctx, "merge")
		return merged, err
	}
	return merged, nil
}

func (w *Watcher) checkMailbox(ctx context.Context) (int, error) {
	cctx, cancel := context.WithTimeout(ctx, w.CallTimeout)
	defer cancel()
	n, err := w.Mailbox.Check(cctx)
	if err != nil {
		return 0, fmt.Errorf("check %s: %w", w.Mailbox.Name(), err)
	}
	return n, nil
}

func (w *Watcher) extract(ctx context.Context) error {
	ok, err := w.runExtractor(ctx, w.TextExtractor)
	if err != nil {
		w.Metrics.RecordWatcherFault(ctx, "text_extraction")
		return err
	}
	if !ok {
		log.Printf("[INFO] %s produced nothing, skipping field extraction", w.TextExtractor.Name())
		return nil
	}
	if _, err := w.runExtractor(ctx, w.FieldExtractor); err != nil {
		w.Metrics.RecordWatcherFault(ctx, "field_extraction")
		return err
	}
	return nil
}

func (w *Watcher) runExtractor(ctx context.Context, e collector.Extractor) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, w.CallTimeout)
	defer cancel()
	ok, err := e.Run(cctx)
	if err != nil {
		return false, fmt.Errorf("run %s: %w", e.Name(), err)
	}
	return ok, nil
}

// mergeNew merges every scanned artifact whose source has not been merged.
// Invalid artifacts are skipped until their file changes.
func (w *Watcher) mergeNew(ctx context.Context) (int, error) {
	arts, err := w.Scanner.Scan()
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, a := range arts {
		if w.Store.Seen(a.SourceID) {
			continue
		}
		if at, ok := w.rejected[a.SourceID]; ok && at.Equal(a.ModTime) {
			continue
		}

		data, err := a.Read()
		if err != nil {
			log.Printf("[WARN] skipping %s: %v", a.SourceID, err)
			continue
		}
		fields, err := w.Validator.Decode(data)
		if err != nil {
			log.Printf("[WARN] rejecting %s: %v", a.SourceID, err)
			w.rejected[a.SourceID] = a.ModTime
			continue
		}
		delete(w.rejected, a.SourceID)

		ok, err := w.Store.TryMerge(ctx, a.SourceID, fields)
		if err != nil {
			return merged, fmt.Errorf("merge %s: %w", a.SourceID, err)
		}
		if ok {
			merged++
			log.Printf("[INFO] merged %s", a.SourceID)
		}
	}
	return merged, nil
}
