// Package logging installs the process-wide zap logger.
package logging

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and the encoder ("json" or "console").
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Init builds the logger and installs it with zap.ReplaceGlobals. The returned func flushes it.
func Init(cfg Config) (func(), error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "logging: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build logger")
	}
	zap.ReplaceGlobals(logger)
	return func() { _ = logger.Sync() }, nil
}
