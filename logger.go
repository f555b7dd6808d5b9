package gsplat

import (
	"log/slog"

	"github.com/gogpu/gsplat/internal/logging"
)

// SetLogger configures the logger used by gsplat and its internal packages
// (internal/raster, internal/gpudispatch). By default, gsplat produces no
// log output. Pass nil to restore silence.
//
// SetLogger is safe for concurrent use.
//
// Log levels used by gsplat:
//   - [slog.LevelDebug]: per-stage dispatch timings, buffer sizes, M_cap/M_actual.
//   - [slog.LevelInfo]: GPU adapter selection, pipeline (re)compilation.
//   - [slog.LevelWarn]: intersection-stream truncation, CPU-fallback engagement.
//
// Example:
//
//	gsplat.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the logger currently configured for gsplat.
func Logger() *slog.Logger {
	return logging.Get()
}
