package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/logging"
)

// InitLogger installs the process-wide console logger tagged with the
// daemon's node identity. Level and color honor the CLIPQUEUE_LOG_*
// environment overrides; a config-file log level may still tighten the
// global level afterwards.
func InitLogger(node string) zerolog.Logger {
	cfg := logging.RuntimeConfig()
	logger := logging.Build(cfg).With().Str("node", node).Logger()
	log.Logger = logger
	zerolog.SetGlobalLevel(cfg.Level)
	return logger
}
