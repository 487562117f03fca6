package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RiskSentinel/internal/api"
	"RiskSentinel/internal/collector"
	"RiskSentinel/internal/config"
	"RiskSentinel/internal/merge"
	"RiskSentinel/internal/notifier"
	"RiskSentinel/internal/pipeline"
	"RiskSentinel/internal/scheduler"
)

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watcher, pipeline, digests and query service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfgPath)
		},
	}
}

func runServe(parent context.Context, cfgPath string) error {
	log.Println("[INFO] RiskSentinel starting...")

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateIngestion(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The merge store shares the artifact backend with the stages.
	store, err := openArtifacts(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init artifact store: %w", err)
	}
	merged := merge.NewStore(store)
	load, mode := merged.Load, "loaded"
	if cfg.Watcher.Resume {
		load, mode = merged.Resume, "resumed"
	}
	if n, err := load(ctx); err != nil {
		log.Printf("[WARN] load merge store: %v", err)
	} else {
		log.Printf("[INFO] %s %d merged records", mode, n)
	}

	a, err := newApp(ctx, cfg, store, merged)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	// Telegram notifier stays nil when unconfigured.
	var sender notifier.Sender
	var tn *notifier.Telegram
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Println("[INFO] telegram not configured, digests are logged only")
	}

	sched := scheduler.NewScheduler(ctx, a.artifacts, sender, cfg.FX.BaseCurrency)
	if err := sched.RegisterDigest(cfg.Schedule.DigestCron); err != nil {
		return err
	}
	a.orch.OnDecided = sched.OnDecided

	runner := pipeline.NewRunner(a.orch)
	runner.Start(ctx)

	w, err := newWatcher(cfg, merged, runner, a)
	if err != nil {
		return err
	}

	sched.Start()
	if tn != nil {
		go tn.Listen(ctx, sched.HandleCommand)
	}

	srv := &api.Server{Artifacts: a.artifacts}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx, cfg.Server.ListenAddr) }()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		w.Run(ctx)
	}()

	log.Println("[INFO] RiskSentinel is running. Press Ctrl+C to stop.")
	srvDone := false
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		srvDone = true
		if err != nil {
			log.Printf("[ERROR] query service: %v", err)
		}
		stop()
	}

	log.Println("[INFO] shutting down...")
	<-watcherDone
	sched.Stop()
	runner.Wait()

	if !srvDone {
		select {
		case <-srvErr:
		case <-time.After(15 * time.Second):
			log.Println("[WARN] query service did not stop in time")
		}
	}
	log.Println("[INFO] RiskSentinel stopped")
	return nil
}

func newWatcher(cfg *config.Config, merged *merge.Store, runner *pipeline.Runner, a *app) (*scheduler.Watcher, error) {
	validator, err := collector.NewFieldValidator()
	if err != nil {
		return nil, fmt.Errorf("init field validator: %w", err)
	}
	c := cfg.Collaborators
	timeout := cfg.Watcher.CallTimeout
	return &scheduler.Watcher{
		Mailbox:        collector.NewHTTPMailbox(c.MailboxURL, c.APIKey, cfg.Proxy, timeout),
		TextExtractor:  collector.NewHTTPExtractor("text-extraction", c.ExtractionURL, c.APIKey, cfg.Proxy, timeout),
		FieldExtractor: collector.NewHTTPExtractor("field-extraction", c.FieldsURL, c.APIKey, cfg.Proxy, timeout),
		Scanner:        &collector.Scanner{Dir: cfg.Watcher.ArtifactDir},
		Validator:      validator,
		Store:          merged,
		Runner:         runner,
		Metrics:        a.metrics,
		PollInterval:   cfg.Watcher.PollInterval,
		Backoff:        cfg.Watcher.Backoff,
		CallTimeout:    timeout,
	}, nil
}
