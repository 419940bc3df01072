package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON = "json"
	FormatText = "text"
	FormatZap  = "zap"
)

// New builds a Logger writing to w in the given format. An empty format
// means JSON. The returned func flushes the backend and is safe to defer.
func New(format string, w io.Writer) (Logger, func(), error) {
	switch format {
	case "", FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil))), func() {}, nil
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, nil))), func() {}, nil
	case FormatZap:
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zapcore.InfoLevel,
		)
		zl := NewZapLogger(zap.New(core))
		return zl, func() { _ = zl.Sync() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", format)
	}
}
