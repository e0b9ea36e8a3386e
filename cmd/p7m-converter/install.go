// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p7m-converter/pkg/types"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and install OpenSSL if it is missing",
	Long: `Install checks the configured OpenSSL path. When the binary is missing it
downloads the installer (reusing a previously downloaded copy), optionally
verifies its SHA-256 digest, and runs it unattended.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().String("sha256", "", "expected SHA-256 of the installer")

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if sum, _ := cmd.Flags().GetString("sha256"); sum != "" {
		cfg.Installer.SHA256 = sum
	}
	cfg.History.Enabled = false

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	task, err := a.Install(ctx)
	if err = errors.Join(err, a.Close()); err != nil {
		return err
	}

	if task != nil && task.Status == types.InstallFailed {
		return fmt.Errorf("installation failed: %s", task.Reason)
	}
	return nil
}
