package main

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/app"
	"github.com/CondeArmand/gamemate-backend/internal/config"
	"github.com/CondeArmand/gamemate-backend/internal/logging"
)

type commandContext struct {
	logLevel *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger *zap.Logger
	app    *app.App
}

func newCommandContext(logLevel *string) *commandContext {
	return &commandContext{logLevel: logLevel}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		level := cfg.Log.Level
		if c.logLevel != nil && *c.logLevel != "" {
			level = *c.logLevel
		}
		logger, err := logging.New(logging.Options{Level: level, Format: "console"})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// withApp opens the shared dependencies on first use; close releases them.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	if c.app == nil {
		cfg, err := c.ensureConfig()
		if err != nil {
			return err
		}
		a, err := app.Open(ctx, cfg, c.logger)
		if err != nil {
			return err
		}
		c.app = a
	}
	return fn(c.app)
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
