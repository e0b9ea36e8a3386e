// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provision makes sure the external conversion tool is installed.
// When the tool binary is missing it downloads the installer (unless a
// previous run left it on disk), runs it unattended, and reports the outcome
// through the status relay. Whatever happens, the relay receives the ready
// sentinel last so the console never waits on provisioning forever.
package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/p7m-converter/internal/httputil"
	"github.com/pdiddy/p7m-converter/internal/relay"
	"github.com/pdiddy/p7m-converter/internal/toolexec"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

// ErrChecksumMismatch is wrapped by a DownloadError when the artifact does
// not match the configured SHA-256 digest.
var ErrChecksumMismatch = errors.New("installer checksum mismatch")

// DownloadError reports a failure to obtain the installer artifact.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading installer from %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// InstallError reports a failed installer run. Err is a *toolexec.Error.
type InstallError struct {
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("running installer %s: %v", e.Path, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Provisioner checks for the tool and installs it when absent.
type Provisioner struct {
	tool      types.ToolConfig
	installer types.InstallerConfig
	client    *http.Client
	exec      toolexec.Executor
	relay     *relay.Relay
	logger    *zap.Logger

	mu   sync.Mutex
	task *types.InstallationTask
}

// New creates a Provisioner. A nil client gets one with the installer
// timeout; a nil executor runs real processes.
func New(tool types.ToolConfig, installer types.InstallerConfig, r *relay.Relay, logger *zap.Logger, client *http.Client, exec toolexec.Executor) *Provisioner {
	if client == nil {
		client = &http.Client{Timeout: installer.Timeout}
	}
	if exec == nil {
		exec = toolexec.OSExecutor{}
	}
	if len(installer.Args) == 0 {
		installer.Args = types.DefaultInstallerArgs
	}
	return &Provisioner{
		tool:      tool,
		installer: installer,
		client:    client,
		exec:      exec,
		relay:     r,
		logger:    logger,
	}
}

// ToolPresent reports whether the tool binary exists at its install path.
func (p *Provisioner) ToolPresent() bool {
	info, err := os.Stat(p.tool.Path)
	return err == nil && !info.IsDir()
}

// Task returns a copy of the current installation task, or nil when no
// installation was needed.
func (p *Provisioner) Task() *types.InstallationTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task == nil {
		return nil
	}
	t := *p.task
	return &t
}

// EnsureAvailable returns a channel closed once provisioning has finished
// and the ready sentinel has been enqueued. If the tool is already present
// the sentinel is enqueued before EnsureAvailable returns and no goroutine,
// download, or process is started. Otherwise installation runs on one
// background goroutine. Failures never surface to the caller; they are
// logged and relayed as status text.
func (p *Provisioner) EnsureAvailable(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	if p.ToolPresent() {
		p.logger.Info(p.tool.Name+" is already installed.", zap.String("path", p.tool.Path))
		p.relay.Ready()
		close(done)
		return done
	}

	p.mu.Lock()
	p.task = &types.InstallationTask{
		InstallerURL: p.installer.URL,
		ArtifactPath: p.installer.Path,
		TargetPath:   p.tool.Path,
		Status:       types.InstallPending,
	}
	p.mu.Unlock()

	p.logger.Info(p.tool.Name+" not found, starting installation.", zap.String("path", p.tool.Path))

	go func() {
		defer close(done)
		p.install(ctx)
	}()
	return done
}

func (p *Provisioner) install(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.logger.Error("Error during "+p.tool.Name+" installation", zap.Error(err))
			p.setStatus(types.InstallFailed, err.Error())
			p.relay.Text(fmt.Sprintf("Error installing %s: %v", p.tool.Name, err))
		}
		p.relay.Ready()
	}()

	if err := p.run(ctx); err != nil {
		p.setStatus(types.InstallFailed, err.Error())
		p.relay.Text(p.failureMessage(err))
		return
	}

	p.setStatus(types.InstallSucceeded, "")
	p.logger.Info(p.tool.Name + " installed successfully.")
	if !p.ToolPresent() {
		p.logger.Warn("installer succeeded but the tool is still missing", zap.String("path", p.tool.Path))
	}
	p.relay.Text(p.tool.Name + " installation complete.")
}

// failureMessage renders err for the console. A non-zero installer exit
// carries the installer's diagnostic output.
func (p *Provisioner) failureMessage(err error) string {
	var te *toolexec.Error
	var ie *InstallError
	if errors.As(err, &ie) && errors.As(err, &te) && te.Kind == toolexec.KindExit {
		p.logger.Error(p.tool.Name+" installation failed", zap.Int("exit_code", te.ExitCode), zap.String("stderr", te.Stderr))
		if te.Stderr == "" {
			return p.tool.Name + " installation failed."
		}
		return fmt.Sprintf("%s installation failed: %s", p.tool.Name, te.Stderr)
	}
	p.logger.Error("Error during "+p.tool.Name+" installation", zap.Error(err))
	return fmt.Sprintf("Error installing %s: %v", p.tool.Name, err)
}

func (p *Provisioner) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.setStatus(types.InstallDownloading, "")
	if err := p.fetchArtifact(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.setStatus(types.InstallInstalling, "")
	p.relay.Text(fmt.Sprintf("Installing %s... Please wait.", p.tool.Name))
	p.logger.Info("Running "+p.tool.Name+" installer...", zap.String("path", p.installer.Path), zap.Strings("args", p.installer.Args))

	if _, err := p.exec.Run(ctx, p.installer.Path, p.installer.Args...); err != nil {
		return &InstallError{Path: p.installer.Path, Err: err}
	}
	return nil
}

// fetchArtifact downloads the installer unless a file already exists at the
// artifact path, then checks its digest when one is configured.
func (p *Provisioner) fetchArtifact(ctx context.Context) error {
	_, err := os.Stat(p.installer.Path)
	switch {
	case err == nil:
		p.logger.Info("Using existing "+p.tool.Name+" installer.", zap.String("path", p.installer.Path))
	case errors.Is(err, fs.ErrNotExist):
		p.relay.Text(fmt.Sprintf("Downloading %s installer...", p.tool.Name))
		p.logger.Info("Downloading "+p.tool.Name+" installer...", zap.String("url", p.installer.URL))

		n, err := httputil.DownloadFile(ctx, p.client, p.installer.URL, p.installer.Path, p.installer.UserAgent)
		if err != nil {
			return &DownloadError{URL: p.installer.URL, Err: err}
		}
		p.mu.Lock()
		p.task.Downloaded = true
		p.mu.Unlock()
		p.logger.Info("Downloaded "+p.tool.Name+" installer to "+p.installer.Path, zap.Int64("bytes", n))
	default:
		return &DownloadError{URL: p.installer.URL, Err: err}
	}

	if p.installer.SHA256 == "" {
		return nil
	}
	if err := verifySHA256(p.installer.Path, p.installer.SHA256); err != nil {
		// Remove the artifact so the next launch downloads a fresh copy.
		os.Remove(p.installer.Path)
		return &DownloadError{URL: p.installer.URL, Err: err}
	}
	return nil
}

func (p *Provisioner) setStatus(s types.InstallStatus, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task.Status = s
	p.task.Reason = reason
}

func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
	}
	return nil
}
