package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of p7m-converter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("p7m-converter %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
