// Package logging builds the zap logger shared by every contract-rpc component.
package logging

import (
	"fmt"
	"os"
	"strings"

	"contract-rpc/config"

	"go.uber.org/zap"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "CONTRACT_RPC_LOG_LEVEL"

// New builds a production logger, or a development one when cfg.Development.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}

	level := cfg.Level
	if env := strings.TrimSpace(os.Getenv(EnvLogLevel)); env != "" {
		level = env
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
