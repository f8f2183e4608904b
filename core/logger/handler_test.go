package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type captureWriter struct{ lines []string }

func (c *captureWriter) Write(line []byte) error {
	c.lines = append(c.lines, strings.TrimRight(string(line), "\n"))
	return nil
}

func newTestLogger(format logFormat) (*slog.Logger, *captureWriter) {
	w := &captureWriter{}
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: w, format: format})
	return slog.New(h), w
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, w := newTestLogger(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "test.event",
		slog.String("status", "OK"),
		slog.Int("step", 5),
	)
	if len(w.lines) != 1 {
		t.Fatalf("lines = %d", len(w.lines))
	}
	tokens := strings.Split(w.lines[0], " ")
	want := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "step=5"}
	if len(tokens) < len(want) {
		t.Fatalf("short line: %s", w.lines[0])
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, want prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSON(t *testing.T) {
	log, w := newTestLogger(formatJSON)
	ctx := WithRID(context.Background(), "12:34:56")

	LogEvent(ctx, log.With("component", "service.referral"), slog.LevelError, "reward.failed",
		slog.String("err", "boom"),
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("outcome", "bogus"),
		slog.String("empty", ""),
	)
	var got map[string]any
	if err := json.Unmarshal([]byte(w.lines[0]), &got); err != nil {
		t.Fatalf("unmarshal %s: %v", w.lines[0], err)
	}
	if got["rid"] != CompactRID("12:34:56") || got["rid_full"] != "12:34:56" {
		t.Fatalf("rid fields = %v / %v", got["rid"], got["rid_full"])
	}
	if got["duration_ms"] != float64(2) {
		t.Fatalf("duration_ms = %v", got["duration_ms"])
	}
	if _, ok := got["outcome"]; ok {
		t.Fatalf("unknown outcome should be dropped")
	}
	if _, ok := got["empty"]; ok {
		t.Fatalf("empty strings should be pruned")
	}
	if _, ok := got["ts_unix_nano"]; !ok {
		t.Fatalf("missing ts_unix_nano")
	}
	if !strings.HasPrefix(w.lines[0], `{"ts":`) {
		t.Fatalf("ts should come first: %s", w.lines[0])
	}
}

func TestWireComponentsScopesServiceLoggers(t *testing.T) {
	prev := L
	defer func() {
		L = prev
		wireComponents()
	}()
	log, w := newTestLogger(formatKV)
	L = log
	wireComponents()

	ctx := context.Background()
	LogEvent(ctx, SVCReferral, slog.LevelInfo, "token.assigned")
	LogEvent(ctx, SVCConversation, slog.LevelInfo, "step.transition")
	LogEvent(ctx, SVCNotify, slog.LevelInfo, "notify.sent")

	want := []string{"component=service.referral", "component=service.conversation", "component=service.notify"}
	if len(w.lines) != len(want) {
		t.Fatalf("lines = %v", w.lines)
	}
	for i, c := range want {
		if !strings.Contains(w.lines[i], c) {
			t.Fatalf("line %d = %s, want %s", i, w.lines[i], c)
		}
	}
}

func TestStructuredHandlerGroupsAndDefaults(t *testing.T) {
	log, w := newTestLogger(formatKV)
	log.WithGroup("store").Info("", slog.String("op", "find user"))

	line := w.lines[0]
	for _, want := range []string{"component=app", "event=unknown", `store.op="find user"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %s", want, line)
		}
	}
}

func TestStructuredHandlerRespectsLevel(t *testing.T) {
	w := &captureWriter{}
	h := newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: w, format: formatKV})
	slog.New(h).Info("dropped")
	if len(w.lines) != 0 {
		t.Fatalf("info should be filtered at warn level")
	}
}

func TestAsyncWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer
	aw := newAsyncWriter([]io.Writer{&a, &b}, 0)
	if err := aw.Write([]byte("one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.String() != "one\n" || b.String() != "one\n" {
		t.Fatalf("sinks = %q %q", a.String(), b.String())
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	if num, den := parseRatioSpec("25"); num != 1 || den != 25 {
		t.Fatalf("parse 25 = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("x/2"); num != 0 || den != 0 {
		t.Fatalf("parse x/2 = %d/%d", num, den)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\td", 10); got != "abc\td" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeLimit("привет", 3); got != "при" {
		t.Fatalf("got %q", got)
	}
}
