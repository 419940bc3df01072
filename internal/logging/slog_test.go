package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "user created", "user_id", "u1")
	log.Warn(ctx, "rehash failed", "user_id", "u2")
	log.Error(ctx, "integrity", "secret_id", "k1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []struct {
		level string
		parts []string
	}{
		{"DEBUG", []string{"msg=dbg", "a=1"}},
		{"INFO", []string{`msg="user created"`, "user_id=u1"}},
		{"WARN", []string{`msg="rehash failed"`, "user_id=u2"}},
		{"ERROR", []string{"msg=integrity", "secret_id=k1"}},
	}
	if !assert.Len(t, lines, len(want)) {
		return
	}
	for i, w := range want {
		assert.Contains(t, lines[i], "level="+w.level)
		for _, p := range w.parts {
			assert.Contains(t, lines[i], p)
		}
	}
}

func TestSlogLogger_WithModule(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "credential_store").Info(context.TODO(), "secret deactivated", "user_id", "u1")

	out := buf.String()
	for _, s := range []string{"level=INFO", "module=credential_store", "user_id=u1"} {
		assert.Contains(t, out, s)
	}
}
