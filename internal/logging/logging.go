// Package logging builds the process logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parisxmas/OxiForms/internal/config"
	"github.com/parisxmas/OxiForms/internal/gelf"
)

const serviceName = "oxiforms"

// New returns a development logger when cfg.Debug is set and a production
// logger otherwise. With cfg.GelfAddr set, entries are also sent to GELF at
// the same level. The returned func flushes and closes everything.
func New(cfg *config.Config) (*zap.Logger, func(), error) {
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{"stdout"}
	} else {
		zc = zap.NewProductionConfig()
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.GelfAddr == "" {
		return logger, func() { _ = logger.Sync() }, nil
	}

	w, err := gelf.New(cfg.GelfAddr, serviceName)
	if err != nil {
		logger.Warn("GELF init failed", zap.String("addr", cfg.GelfAddr), zap.Error(err))
		return logger, func() { _ = logger.Sync() }, nil
	}
	gelfCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), w, zc.Level)
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, gelfCore)
	}))
	logger.Info("GELF logging enabled", zap.String("addr", cfg.GelfAddr))
	return logger, func() {
		_ = logger.Sync()
		_ = w.Close()
	}, nil
}
