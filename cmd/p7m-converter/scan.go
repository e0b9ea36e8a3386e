// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "List the .p7m files convert would process",
	Long: `Scan lists the files directly inside DIR whose name ends in the input
suffix (case-insensitive), in the order convert would process them. Nothing is
installed or written.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.History.Enabled = false

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	_, err = a.Scan(args[0])
	return errors.Join(err, a.Close())
}
