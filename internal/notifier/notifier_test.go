package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskSentinel/internal/decision"
	"RiskSentinel/internal/model"
	"RiskSentinel/internal/pipeline"
)

func decided(insured string, verdict model.Verdict, share, liab float64) model.DecisionRecord {
	return model.DecisionRecord{
		CalculatedRecord: model.CalculatedRecord{EnrichedRecord: model.EnrichedRecord{RiskRecord: model.RiskRecord{
			Fields: model.Fields{model.FieldInsured: insured, model.FieldCedant: "Kenya Re"},
		}}},
		Verdict:                    verdict,
		AcceptedSharePct:           share,
		EvaluatedAcceptedLiability: liab,
	}
}

func TestSend_PostsHTMLMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegram("TOKEN", "42", "")
	n.APIBase = srv.URL
	require.NoError(t, n.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewTelegram("T", "1", "")
	n.APIBase = srv.URL
	n.RetryBase = time.Millisecond
	err := n.SendWithRetry(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Equal(t, int32(2), calls.Load())
}

func TestListen_RepliesToCommands(t *testing.T) {
	replies := make(chan string, 1)
	var served atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if served.CompareAndSwap(false, true) {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /decisions ","chat":{"id":1}}}]}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("offset"))
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			replies <- body["text"]
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := NewTelegram("T", "1", "")
	n.APIBase = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Listen(ctx, func(_ context.Context, cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case r := <-replies:
		assert.Equal(t, "got /decisions", r)
	case <-time.After(3 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-done
}

func TestListen_IgnoresOtherChats(t *testing.T) {
	var polls atomic.Int32
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":3,"message":{"text":"/latest","chat":{"id":999}}}]}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sent.Add(1)
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := NewTelegram("T", "1", "")
	n.APIBase = srv.URL
	var handled atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Listen(ctx, func(context.Context, string) string { handled.Add(1); return "leak" })
		close(done)
	}()

	require.Eventually(t, func() bool { return polls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, int32(0), handled.Load())
	assert.Equal(t, int32(0), sent.Load())
}

func TestSend_SplitsLongDigests(t *testing.T) {
	var parts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		parts = append(parts, body["text"])
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	line := strings.Repeat("x", 99) + "\n"
	text := strings.Repeat(line, 60)

	n := NewTelegram("T", "1", "")
	n.APIBase = srv.URL
	require.NoError(t, n.Send(context.Background(), text))

	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), maxMessageLen)
	}
	assert.Equal(t, strings.Count(text, "x"), strings.Count(strings.Join(parts, ""), "x"))
}

func TestSend_RejectedByAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegram("T", "1", "")
	n.APIBase = srv.URL
	err := n.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitMessage("aaaa\nbbbb", 6))
	assert.Equal(t, []string{"abcdef", "ghij"}, splitMessage("abcdefghij", 6))
}

func TestFormatRunDigest(t *testing.T) {
	recs := []model.DecisionRecord{
		decided("Acme <Cold> Rooms", model.VerdictAccept, 30, 150_000_000),
		decided("Delta Mills", model.VerdictDecline, 0, 0),
	}
	res := pipeline.Result{Records: 2, Accepted: 1, Declined: 1, Degraded: 1, StartedAt: time.Now()}

	out := FormatRunDigest(res, recs, "KES")
	assert.Contains(t, out, "Risks: 2 | ✅ 1 | ❌ 1 | ⚠️ 1 degraded")
	assert.Contains(t, out, "✅ Acme &lt;Cold&gt; Rooms: Accept 30.00% (KES 150,000,000)")
	assert.Contains(t, out, "❌ Delta Mills: Decline 0.00%")
	assert.Contains(t, out, "Kenya Re: 1/2 accepted")
}

func TestFormatRunDigest_Truncates(t *testing.T) {
	var recs []model.DecisionRecord
	for i := 0; i < maxListed+3; i++ {
		recs = append(recs, decided("X", model.VerdictDecline, 0, 0))
	}
	out := FormatRunDigest(pipeline.Result{Records: len(recs)}, recs, "KES")
	assert.Contains(t, out, "… and 3 more")
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(decision.Summary{Total: 4, Accepted: 3, Declined: 1, AcceptanceRatePct: 75, AcceptedPremium: 1234567.891}, "KES")
	assert.Contains(t, out, "(75% acceptance)")
	assert.Contains(t, out, "Accepted premium: KES 1,234,567.89")
}
