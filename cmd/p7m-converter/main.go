// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the p7m-converter CLI. It provisions
// OpenSSL when missing and converts folders of signed .p7m files into their
// embedded PDF documents.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the p7m-converter CLI.
var rootCmd = &cobra.Command{
	Use:   "p7m-converter",
	Short: "Extract PDF documents from signed .p7m files",
	Long: `p7m-converter extracts the PDF payload from CAdES/PKCS#7 signed files
(.p7m) using OpenSSL. When OpenSSL is not installed at its well-known path the
installer is downloaded and run unattended before any conversion starts.

Use convert to process a folder, scan to list what would be converted, install
to provision OpenSSL only, and history to inspect previous runs.`,
	SilenceUsage: true,
}

// configKeys are the settings viper reads from the config file and from
// P7M_CONVERTER_* environment variables.
var configKeys = []string{
	"tool.name", "tool.path",
	"installer.url", "installer.path", "installer.args", "installer.sha256",
	"installer.timeout", "installer.user_agent",
	"log.dir", "log.verbose",
	"poll_interval",
	"convert.input_suffix", "convert.output_suffix",
	"history.enabled", "history.path",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./p7m-converter.yaml or ~/.config/p7m-converter/p7m-converter.yaml)")
	rootCmd.PersistentFlags().String("tool-path", "", "path of the openssl binary")
	rootCmd.PersistentFlags().String("log-dir", "", "directory holding app.log")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "also write log lines to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("p7m-converter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "p7m-converter"))
		}
	}

	viper.SetEnvPrefix("P7M_CONVERTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range configKeys {
		viper.BindEnv(k)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
