package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rollq/internal/config"
	"rollq/internal/logging"
	"rollq/internal/queue"
	"rollq/internal/rolling"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	if c.verboseFlag == nil || !*c.verboseFlag {
		return logging.NewNop()
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	verbose := *cfg
	verbose.Logging.Level = "debug"
	logger, err := logging.NewFromConfig(&verbose)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withManager opens the store for the duration of fn. The campus directory is
// backed by the store's assignment table.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(*rolling.Manager, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(rolling.NewManager(store, store, c.logger()), store)
}

// withLockedManager is withManager plus the instance lock, for commands that
// mutate queue state.
func (c *commandContext) withLockedManager(cmd *cobra.Command, fn func(*rolling.Manager, *queue.Store) error) error {
	return c.withManager(cmd, func(m *rolling.Manager, store *queue.Store) error {
		if err := store.AcquireLock(); err != nil {
			return fmt.Errorf("acquire queue lock: %w", err)
		}
		defer store.ReleaseLock()
		return fn(m, store)
	})
}
