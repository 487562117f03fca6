// Package scheduler runs the ingestion watcher and the timed underwriting
// digest.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/notifier"
	"RiskSentinel/internal/pipeline"
)

// Scheduler sends decision digests on a cron schedule, after pipeline runs
// and in reply to chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Artifacts artifact.Store
	Notifier  notifier.Sender
	Currency  string
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. tn may be nil to disable sending.
func NewScheduler(ctx context.Context, artifacts artifact.Store, tn notifier.Sender, currency string) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Artifacts: artifacts,
		Notifier:  tn,
		Currency:  currency,
		Ctx:       ctx,
	}
}

// RegisterDigest schedules the periodic summary. An empty spec disables it.
func (s *Scheduler) RegisterDigest(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) digestTask() {
	log.Println("[INFO] running digest task")
	s.trySend(s.summaryText(s.Ctx))
}

// OnDecided sends the run digest; wired as the orchestrator hook.
func (s *Scheduler) OnDecided(ctx context.Context, res pipeline.Result, decided []model.DecisionRecord) {
	if res.Records == 0 {
		return
	}
	s.trySend(notifier.FormatRunDigest(res, decided, s.Currency))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var verb string
	if f := strings.Fields(command); len(f) > 0 {
		verb = strings.ToLower(f[0])
	}
	switch verb {
	case "/decisions", "/summary":
		return s.summaryText(ctx)
	case "/latest":
		decided, err := pipeline.LoadDecisions(ctx, s.Artifacts)
		if err != nil {
			return s.loadError(err)
		}
		var b strings.Builder
		for _, d := range decided {
			b.WriteString(notifier.FormatDecisionLine(d, s.Currency))
		}
		if b.Len() == 0 {
			return "No risks decided yet"
		}
		return b.String()
	default:
		return "Commands:\n• /decisions - portfolio summary\n• /latest - every decided risk"
	}
}

func (s *Scheduler) summaryText(ctx context.Context) string {
	decided, err := pipeline.LoadDecisions(ctx, s.Artifacts)
	if err != nil {
		return s.loadError(err)
	}
	return notifier.FormatSummary(decision.Summarize(decided), s.Currency)
}

func (s *Scheduler) loadError(err error) string {
	if errors.Is(err, pipeline.ErrNotReady) {
		return notifier.FormatNotReady()
	}
	log.Printf("[ERROR] load decisions: %v", err)
	return "❌ Decisions could not be read"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		log.Printf("[INFO] notifier disabled, digest not sent")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
