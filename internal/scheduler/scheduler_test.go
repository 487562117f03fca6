package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskSentinel/internal/artifact"
	"RiskSentinel/internal/collector"
	"RiskSentinel/internal/merge"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/pipeline"
)

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

type blockingMailbox struct{}

func (blockingMailbox) Name() string { return "blocking" }

func (blockingMailbox) Check(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

type fixture struct {
	dir     string
	mailbox *collector.MockMailbox
	text    *collector.MockExtractor
	fields  *collector.MockExtractor
	store   *merge.Store
	trigger *countingTrigger
	w       *Watcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := collector.NewFieldValidator()
	require.NoError(t, err)

	f := &fixture{
		dir:     t.TempDir(),
		mailbox: &collector.MockMailbox{},
		text:    &collector.MockExtractor{Label: "text", Processed: true},
		fields:  &collector.MockExtractor{Label: "fields", Processed: true},
		store:   merge.NewStore(nil),
		trigger: &countingTrigger{},
	}
	f.w = &Watcher{
		Mailbox:        f.mailbox,
		TextExtractor:  f.text,
		FieldExtractor: f.fields,
		Scanner:        &collector.Scanner{Dir: f.dir},
		Validator:      v,
		Store:          f.store,
		Runner:         f.trigger,
		PollInterval:   10 * time.Millisecond,
		Backoff:        20 * time.Millisecond,
		CallTimeout:    time.Second,
	}
	return f
}

func (f *fixture) write(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o644))
}

func TestCycle_MergesOnceAndTriggers(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.json", `{"Insured":"Acme","TSI_Original_Currency":100}`)
	ctx := context.Background()

	n, err := f.w.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), f.trigger.n.Load())

	n, err = f.w.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(1), f.trigger.n.Load(), "no trigger without a merge")
	assert.Equal(t, 1, f.store.Len())
}

func TestCycle_ExtractsOnlyOnNewSubmissions(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Counts = []int{1, 1, 2}
	f.fields.OnRun = func() {
		name := filepath.Join(f.dir, "sub-"+time.Now().Format("150405.000000000")+".json")
		os.WriteFile(name, []byte(`{"Insured":"New"}`), 0o644)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.w.Cycle(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.text.Calls())
	assert.Equal(t, 2, f.fields.Calls())
	assert.Equal(t, 2, f.store.Len())
}

func TestCycle_TextExtractionNothingSkipsFields(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Counts = []int{1}
	f.text.Processed = false

	_, err := f.w.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.text.Calls())
	assert.Equal(t, 0, f.fields.Calls())
}

func TestCycle_CollaboratorFailure(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Err = errors.New("imap down")
	f.write(t, "a.json", `{"Insured":"Acme"}`)

	_, err := f.w.Cycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, f.store.Len())

	// A failed extraction is retried on the next cycle.
	f.mailbox.Err = nil
	f.mailbox.Counts = []int{3}
	f.text.Err = errors.New("ocr crashed")
	_, err = f.w.Cycle(context.Background())
	require.Error(t, err)

	f.text.Err = nil
	_, err = f.w.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.text.Calls())
	assert.Equal(t, 1, f.store.Len())
}

func TestCycle_CallTimeout(t *testing.T) {
	f := newFixture(t)
	f.w.Mailbox = blockingMailbox{}
	f.w.CallTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := f.w.Cycle(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCycle_InvalidArtifactSkippedUntilChanged(t *testing.T) {
	f := newFixture(t)
	f.write(t, "bad.json", `[1,2,3]`)
	ctx := context.Background()

	n, err := f.w.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, f.w.rejected, "bad.json")

	f.write(t, "bad.json", `{"Insured":"Fixed"}`)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(f.dir, "bad.json"), later, later))

	n, err = f.w.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_InitialTriggerAndShutdown(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.TryMerge(context.Background(), "prior.json", model.Fields{"Insured": "Old"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.mailbox.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, f.trigger.n.Load(), int32(1))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_BacksOffOnFailure(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Err = errors.New("down")
	f.w.Backoff = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	f.w.Run(ctx)

	// Initial check plus at most two backed-off cycles.
	assert.LessOrEqual(t, f.mailbox.Calls(), 3)
}

type panickingExtractor struct{ calls atomic.Int32 }

func (*panickingExtractor) Name() string { return "panicking" }

func (p *panickingExtractor) Run(context.Context) (bool, error) {
	p.calls.Add(1)
	panic("unexpected nil in extractor reply")
}

func TestRun_SurvivesPanickingCollaborator(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Counts = []int{0, 1}
	bad := &panickingExtractor{}
	f.w.TextExtractor = bad

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.w.Run(ctx)
	}()

	require.Eventually(t, func() bool { return bad.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.fields.Calls())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestGuard_ReportsPanicAsError(t *testing.T) {
	w := &Watcher{}
	err := w.guard(context.Background(), "cycle", func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle panicked: boom")

	assert.NoError(t, w.guard(context.Background(), "cycle", func() error { return nil }))
}

func TestScheduler_Commands(t *testing.T) {
	fs, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	s := NewScheduler(ctx, fs, nil, "KES")

	assert.Contains(t, s.HandleCommand(ctx, "/decisions"), "No decisions yet")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "/decisions")

	recs := []model.DecisionRecord{{
		CalculatedRecord: model.CalculatedRecord{EnrichedRecord: model.EnrichedRecord{RiskRecord: model.RiskRecord{
			Source: "a.json", Fields: model.Fields{model.FieldInsured: "Acme"},
		}}},
		Verdict:          model.VerdictAccept,
		AcceptedSharePct: 30,
	}}
	require.NoError(t, artifact.SaveCollection(ctx, fs, artifact.KeyDecisions, recs))

	assert.Contains(t, s.HandleCommand(ctx, "/DECISIONS now"), "Total: 1 | Accepted: 1")
	assert.Contains(t, s.HandleCommand(ctx, "/latest"), "Acme: Accept 30.00%")
}

func TestScheduler_DigestSending(t *testing.T) {
	fs, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sender := &recordingSender{}
	s := NewScheduler(context.Background(), fs, sender, "KES")

	require.Error(t, s.RegisterDigest("not a cron"))
	require.NoError(t, s.RegisterDigest("0 0 8 * * *"))
	require.NoError(t, s.RegisterDigest(""))

	s.OnDecided(context.Background(), pipeline.Result{}, nil)
	s.OnDecided(context.Background(), pipeline.Result{Records: 1, Accepted: 1}, nil)
	s.digestTask()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0], "RiskSentinel run")
	assert.Contains(t, sender.sent[1], "No decisions yet")
}
