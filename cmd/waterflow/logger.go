package main

import (
	"github.com/aglayrton/fluxo-agua/internal/config"
	"github.com/aglayrton/fluxo-agua/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
