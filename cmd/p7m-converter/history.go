// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p7m-converter/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect previous conversion runs",
	Long: `History reads the SQLite database where every conversion run is recorded
with its per-file outcomes.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversion runs",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	batches, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(batches) == 0 {
		fmt.Fprintln(out, "No conversion runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-19s  %5s  %5s  %5s  %5s  %s\n",
		"ID", "Started", "Total", "OK", "Fail", "Skip", "Folder")
	fmt.Fprintln(out, strings.Repeat("-", 110))
	for _, b := range batches {
		fmt.Fprintf(out, "%-36s  %-19s  %5d  %5d  %5d  %5d  %s\n",
			b.ID, b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			b.Total, b.Converted, b.Failed, b.Skipped, b.Dir)
	}
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent runs with per-file outcomes as YAML or JSON",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")
	outPath, _ := cmd.Flags().GetString("output")

	w := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}
	return store.Export(context.Background(), w, format, limit)
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return nil, fmt.Errorf("no history at %s: %w", cfg.History.Path, err)
	}
	return history.Open(cfg.History.Path)
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of runs to show")

	historyExportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	historyExportCmd.Flags().Int("limit", 0, "maximum number of runs to export (default 20)")
	historyExportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")

	historyCmd.AddCommand(historyListCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
