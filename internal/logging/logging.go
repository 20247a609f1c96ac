// Package logging builds the process-wide structured logger, in the
// style of _examples/luma-pharos/internal/env/make_logger.go: a
// zap.Logger configured once at startup and passed down explicitly
// rather than reached for as a global.
//
// The teacher's own go.mod names github.com/Eugene-Usachev/logger, but
// no repo in the retrieval pack calls into it anywhere, so there's
// nothing to ground its API on. zap is used the same way by another
// pack repo (luma-pharos), so the ambient logging concern is built on
// that instead; see DESIGN.md.
package logging

import "go.uber.org/zap"

// New builds a logger. In production mode it emits structured JSON at
// info level and above; otherwise it emits human-readable console
// output at debug level and above, matching the two configurations
// zap ships and luma-pharos's MakeLogger reaches for.
func New(production bool) (*zap.Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.Encoding = "json"
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// Fields commonly attached to connector and iproto log lines.
func Fd(fd int) zap.Field        { return zap.Int("fd", fd) }
func Sync(sync uint64) zap.Field { return zap.Uint64("sync", sync) }
func Space(id uint32) zap.Field  { return zap.Uint32("space_id", id) }
func RequestType(code uint32) zap.Field {
	return zap.Uint32("request_code", code)
}
