// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/p7m-converter/internal/app"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

// loadConfig layers the config file and environment over the platform
// defaults, then applies any flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	cfg := types.DefaultConfig()
	historyName := filepath.Base(cfg.History.Path)

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("tool-path") {
		cfg.Tool.Path, _ = flags.GetString("tool-path")
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("verbose") {
		cfg.Log.Verbose, _ = flags.GetBool("verbose")
	}

	// The history database follows the log directory unless placed explicitly.
	if !viper.IsSet("history.path") && (viper.IsSet("log.dir") || flags.Changed("log-dir")) {
		cfg.History.Path = filepath.Join(cfg.Log.Dir, historyName)
	}
	return cfg, nil
}

// newApp builds the application context writing to the terminal.
func newApp(cfg types.Config) (*app.App, error) {
	return app.New(cfg, app.Deps{Out: os.Stdout, ErrOut: os.Stderr})
}

// signalContext is canceled on Ctrl-C so running work can stop between files.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
