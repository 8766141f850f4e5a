package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"medannotate/internal/assignment"
	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

// withStore opens the directory database for a one-shot admin command.
func (c *commandContext) withStore(fn func(*config.Config, *directory.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := directory.Open(cfg)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withManager is withStore plus an assignment manager that logs to stderr.
func (c *commandContext) withManager(fn func(*directory.Store, *assignment.Manager) error) error {
	return c.withStore(func(cfg *config.Config, store *directory.Store) error {
		logger, err := cliLogger(cfg)
		if err != nil {
			return err
		}
		return fn(store, assignment.NewManager(store, logger))
	})
}

func cliLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  "console",
		Outputs: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
