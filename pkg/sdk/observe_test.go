package storyrag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.observe("op", "", time.Now(), nil)
	o.indexed(3)
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	o.observe("ask", "s1", time.Now(), nil)
	o.observe("ask", "s1", time.Now(), errors.New("boom"))
	o.observe("ask", "s1", time.Now(), fmt.Errorf("ask: %w", ErrEmptyIndex))
	o.observe("ingest", "s1", time.Now(), fmt.Errorf("ingest: %w", ErrUnsupportedFormat))
	o.indexed(4)

	if got := testutil.ToFloat64(o.metrics.operations.WithLabelValues("ask", "ok")); got != 1 {
		t.Errorf("ask ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.metrics.operations.WithLabelValues("ask", "error")); got != 1 {
		t.Errorf("ask error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.metrics.operations.WithLabelValues("ask", "empty_index")); got != 1 {
		t.Errorf("ask empty_index = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.metrics.operations.WithLabelValues("ingest", "rejected")); got != 1 {
		t.Errorf("ingest rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.metrics.chunks); got != 4 {
		t.Errorf("indexed chunks = %v, want 4", got)
	}
	if got := testutil.CollectAndCount(o.metrics.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.metrics.operations != second.metrics.operations {
		t.Error("second observer registered a new counter instead of reusing")
	}
}

func TestObserver_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	o.observe("ask", "s1", time.Now(), errors.New("upstream down"))
	out := buf.String()
	if !strings.Contains(out, "operation failed") || !strings.Contains(out, "upstream down") {
		t.Errorf("log = %q", out)
	}
	if !strings.Contains(out, "session_id=s1") {
		t.Errorf("log missing session_id: %q", out)
	}

	buf.Reset()
	o.observe("ask", "s1", time.Now(), fmt.Errorf("ask: %w", ErrSessionNotFound))
	if out := buf.String(); !strings.Contains(out, "operation rejected") || !strings.Contains(out, "status=not_found") {
		t.Errorf("log = %q", out)
	}
}

func TestClient_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _, _ := newTestClient(t, WithPrometheus(reg))
	ctx := context.Background()

	sess := c.CreateSession(ctx)
	if _, err := c.Ask(ctx, sess.ID, "anything?"); !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("Ask: %v", err)
	}

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("ask", "empty_index")); got != 1 {
		t.Errorf("ask empty_index = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("create_session", "ok")); got != 1 {
		t.Errorf("create_session ok = %v, want 1", got)
	}
}
