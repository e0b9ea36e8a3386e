// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Default values shared by the CLI flags and DefaultConfig.
const (
	DefaultToolName       = "OpenSSL"
	DefaultInstallerURL   = "https://slproweb.com/download/Win64OpenSSL-3_3_2.exe"
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultInputSuffix    = ".p7m"
	DefaultOutputSuffix   = ".pdf"
	DefaultInstallTimeout = 10 * time.Minute

	appDirName       = "P7MConverterLogs"
	installerName    = "Win64OpenSSL-3_3_2.exe"
	historyFileName  = "history.db"
	windowsToolPath  = `C:\Program Files\OpenSSL-Win64\bin\openssl.exe`
	unixToolPath     = "/usr/bin/openssl"
	fallbackBaseName = ".p7m-converter"
)

// DefaultInstallerArgs are the flags that run the installer without prompts
// or a reboot.
var DefaultInstallerArgs = []string{"/verysilent", "/norestart"}

// ToolConfig locates the external conversion tool.
type ToolConfig struct {
	// Name is the human-readable tool name used in status messages (e.g. "OpenSSL").
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Path is the well-known install path of the tool binary.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// InstallerConfig describes where the tool installer comes from and how to run it.
type InstallerConfig struct {
	// URL is the fixed download location of the installer artifact.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Path is the per-user writable location the artifact is saved to.
	// An existing file at Path is reused without downloading.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Args are passed to the installer to run it unattended.
	Args []string `json:"args" yaml:"args" mapstructure:"args"`

	// SHA256 is an optional hex digest of the artifact. When empty no
	// integrity check is performed.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty" mapstructure:"sha256"`

	// Timeout bounds the download request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with the download request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig holds settings for the append-only log sink.
type LogConfig struct {
	// Dir is the directory holding app.log.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Verbose also writes log lines to stderr.
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// ConversionConfig holds settings for the batch converter.
type ConversionConfig struct {
	// InputSuffix is matched case-insensitively during discovery (default ".p7m").
	InputSuffix string `json:"input_suffix" yaml:"input_suffix" mapstructure:"input_suffix"`

	// OutputSuffix replaces InputSuffix in derived output paths (default ".pdf").
	OutputSuffix string `json:"output_suffix" yaml:"output_suffix" mapstructure:"output_suffix"`
}

// HistoryConfig controls the SQLite ledger of batch runs.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config groups the settings of every component. It is built once at
// startup and passed to constructors.
type Config struct {
	Tool      ToolConfig       `json:"tool" yaml:"tool" mapstructure:"tool"`
	Installer InstallerConfig  `json:"installer" yaml:"installer" mapstructure:"installer"`
	Log       LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Convert   ConversionConfig `json:"convert" yaml:"convert" mapstructure:"convert"`
	History   HistoryConfig    `json:"history" yaml:"history" mapstructure:"history"`

	// PollInterval is the cadence at which the console drains the status relay.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
}

// DefaultConfig returns the platform defaults. On Windows the artifact and
// logs live under %APPDATA% and the tool is expected in Program Files.
func DefaultConfig() Config {
	base := userDataDir()
	logDir := filepath.Join(base, appDirName)

	toolPath := unixToolPath
	if runtime.GOOS == "windows" {
		toolPath = windowsToolPath
	}

	return Config{
		Tool: ToolConfig{
			Name: DefaultToolName,
			Path: toolPath,
		},
		Installer: InstallerConfig{
			URL:       DefaultInstallerURL,
			Path:      filepath.Join(base, installerName),
			Args:      append([]string(nil), DefaultInstallerArgs...),
			Timeout:   DefaultInstallTimeout,
			UserAgent: "p7m-converter/0.1",
		},
		Log: LogConfig{
			Dir: logDir,
		},
		Convert: ConversionConfig{
			InputSuffix:  DefaultInputSuffix,
			OutputSuffix: DefaultOutputSuffix,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(logDir, historyFileName),
		},
		PollInterval: DefaultPollInterval,
	}
}

func userDataDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallbackBaseName)
	}
	return fallbackBaseName
}
