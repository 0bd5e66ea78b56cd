package storage

import (
	"fmt"
	"strings"

	logx "racebot/pkg/logx"
)

// Open returns a Store for cfg, or (nil, nil) when storage is disabled.
// Callers must treat a nil Store as "don't record".
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
