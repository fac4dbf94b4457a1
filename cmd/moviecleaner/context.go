package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/moviedata/internal/config"
	"github.com/JonMunkholm/moviedata/internal/logging"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	configErr  error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

// ensureConfig loads .env, the config file and the environment once, applies
// the persistent log flags and installs the default logger on cmd's output.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = fmt.Errorf("load .env: %w", err)
			return
		}

		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}

		flags := cmd.Root().PersistentFlags()
		if flags.Changed("log-level") {
			cfg.Logging.Level = *c.logLevel
		}
		if flags.Changed("log-format") {
			cfg.Logging.Format = *c.logFormat
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("config validation: %w", err)
			return
		}

		c.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.OutOrStdout())
		c.logger.Debug("configuration loaded", "config", cfg.String())
		c.config = cfg
	})
	return c.config, c.configErr
}
