// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert DIR",
	Short: "Convert every .p7m file in a folder to PDF",
	Long: `Convert waits until OpenSSL is available (installing it if needed), then
extracts the signed content of every .p7m file directly inside DIR to a .pdf
next to it. Files are processed one at a time in directory order; a file that
fails is reported and the batch continues. Ctrl-C stops after the current file.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("input-suffix", "", "suffix of the files to convert (default .p7m)")
	convertCmd.Flags().String("output-suffix", "", "suffix replacing the input suffix (default .pdf)")
	convertCmd.Flags().Bool("no-history", false, "do not record the run in the history database")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if s, _ := cmd.Flags().GetString("input-suffix"); s != "" {
		cfg.Convert.InputSuffix = s
	}
	if s, _ := cmd.Flags().GetString("output-suffix"); s != "" {
		cfg.Convert.OutputSuffix = s
	}
	if off, _ := cmd.Flags().GetBool("no-history"); off {
		cfg.History.Enabled = false
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	result, runErr := a.ConvertFolder(ctx, args[0])
	runErr = errors.Join(runErr, a.Close())
	if runErr != nil {
		return runErr
	}

	switch {
	case result.HasFailures():
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	case result.Skipped > 0:
		return fmt.Errorf("canceled: %d file(s) not converted", result.Skipped)
	}
	return nil
}
