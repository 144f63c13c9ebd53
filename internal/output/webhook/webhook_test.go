package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/crimson-sun/pricelog/internal/model"
	"github.com/crimson-sun/pricelog/internal/output"
)

func testSnapshot(name string) model.Snapshot {
	return model.Snapshot{
		Info:   model.Info{InstanceName: name, SettingsName: "default", Status: model.StatusOptimal, Rounds: 2},
		Events: []model.PricingEvent{{Node: 1, Round: 1, Sequence: 2, Vars: 1}},
		RootBounds: []model.RootBoundRow{
			{Iteration: 0, Primal: model.NewBound(2), Dual: model.NewBound(1), Gap: 0.5},
		},
		Gap: model.GapResult{Status: model.GapOK, Direction: model.DirectionPrimalUpper},
	}
}

type collector struct {
	mu       sync.Mutex
	received [][]output.Summary
}

func (c *collector) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var batch []output.Summary
	json.Unmarshal(body, &batch)
	c.mu.Lock()
	c.received = append(c.received, batch)
	c.mu.Unlock()
	w.WriteHeader(200)
}

func (c *collector) batches() [][]output.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]output.Summary(nil), c.received...)
}

func TestBatchFlushAtBatchSize(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(3), WithFlushInterval(10*time.Second))

	for _, n := range []string{"a", "b", "c"} {
		if err := out.Write(context.Background(), testSnapshot(n)); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	received := c.batches()
	if len(received) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(received))
	}
	if len(received[0]) != 3 {
		t.Fatalf("batch size = %d, want 3", len(received[0]))
	}
	got := received[0][1]
	if got.Instance != "b" || got.Status != model.StatusOptimal || got.Events != 1 {
		t.Errorf("summary = %+v", got)
	}
	if got.FinalGap == nil || *got.FinalGap != 0.5 {
		t.Errorf("final gap = %v, want 0.5", got.FinalGap)
	}
}

func TestTimerFlushBeforeBatchSize(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(100*time.Millisecond))
	defer out.Close()

	out.Write(context.Background(), testSnapshot("timer"))

	// Wait for the timer to fire.
	time.Sleep(300 * time.Millisecond)

	received := c.batches()
	if len(received) != 1 {
		t.Fatalf("expected 1 timer-triggered batch, got %d", len(received))
	}
	if len(received[0]) != 1 {
		t.Errorf("batch size = %d, want 1", len(received[0]))
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithRetryDelay(time.Millisecond))
	if err := out.Write(context.Background(), testSnapshot("retry")); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRetryGivesUp(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithRetryDelay(time.Millisecond))
	if err := out.Write(context.Background(), testSnapshot("down")); err == nil {
		t.Error("expected error after retries")
	}
	if attempts.Load() != maxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts.Load(), maxRetries+1)
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(400)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1))
	err := out.Write(context.Background(), testSnapshot("client-error"))

	if err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", attempts.Load())
	}
}

func TestCustomHeaders(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Custom-Auth")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL,
		WithBatchSize(1),
		WithHeaders(map[string]string{"X-Custom-Auth": "secret123"}),
	)

	out.Write(context.Background(), testSnapshot("headers"))

	if gotAuth != "secret123" {
		t.Errorf("custom header = %q, want secret123", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}
}

func TestTimerFlushErrorLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	out := New(srv.URL,
		WithBatchSize(100),
		WithFlushInterval(50*time.Millisecond),
		WithLogger(zap.New(core)),
	)

	out.Write(context.Background(), testSnapshot("timer-error"))

	// Wait for timer-triggered flush + HTTP round-trip.
	time.Sleep(300 * time.Millisecond)

	if n := logs.FilterMessage("webhook flush error").Len(); n != 1 {
		t.Errorf("expected 1 flush error log, got %d", n)
	}

	out.Close()
}

func TestTimerFlushErrorCallbackInvoked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))
	defer srv.Close()

	var errCount atomic.Int64
	out := New(srv.URL,
		WithBatchSize(100),
		WithFlushInterval(50*time.Millisecond),
		WithOnError(func(err error) { errCount.Add(1) }),
	)

	out.Write(context.Background(), testSnapshot("timer-error"))
	time.Sleep(300 * time.Millisecond)

	if errCount.Load() != 1 {
		t.Errorf("expected error callback called 1 time, got %d", errCount.Load())
	}

	out.Close()
}

func TestCloseFlushesRemaining(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(10*time.Second))

	out.Write(context.Background(), testSnapshot("close-flush"))
	out.Write(context.Background(), testSnapshot("close-flush"))

	out.Close()

	received := c.batches()
	if len(received) != 1 {
		t.Fatalf("expected 1 batch on Close, got %d", len(received))
	}
	if len(received[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(received[0]))
	}
}
