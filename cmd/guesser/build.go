package main

import (
	"context"
	"fmt"
	"io"

	"github.com/antoniostano/guesser/internal/app"
	"github.com/antoniostano/guesser/internal/config"
	"github.com/antoniostano/guesser/internal/logging"
)

func build(ctx context.Context, logOut io.Writer) (*app.BuildResult, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	return app.Build(ctx, cfg, logger, nil)
}

func cleanup(res *app.BuildResult) {
	if err := res.Cleanup(); err != nil {
		res.Logger.Warn().Err(err).Msg("cleanup failed")
	}
}
