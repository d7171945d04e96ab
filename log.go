package main

import (
	"fmt"

	"github.com/streamcore/ttsqueue/internal/config"
	"github.com/streamcore/ttsqueue/internal/logging"
)

func setupLog(c config.Config) (func() error, error) {
	closer, err := logging.Setup(logging.Options{
		Debug: c.Debug || debug,
		File:  c.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to set up logging: %w", err)
	}
	return closer, nil
}
