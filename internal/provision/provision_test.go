// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/p7m-converter/internal/relay"
	"github.com/pdiddy/p7m-converter/internal/toolexec"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

const installerBody = "fake installer"

// fakeExecutor records invocations and optionally creates the tool binary,
// the way a real installer would.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    [][]string
	err      error
	toolPath string
}

func (f *fakeExecutor) Run(_ context.Context, name string, args ...string) (toolexec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.err != nil {
		return toolexec.Result{}, f.err
	}
	if f.toolPath != "" {
		os.MkdirAll(filepath.Dir(f.toolPath), 0o755)
		os.WriteFile(f.toolPath, []byte("bin"), 0o755)
	}
	return toolexec.Result{}, nil
}

func (f *fakeExecutor) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type fixture struct {
	tool      types.ToolConfig
	installer types.InstallerConfig
	relay     *relay.Relay
	exec      *fakeExecutor
	hits      *int32
	server    *httptest.Server
}

func newFixture(t *testing.T, status int) *fixture {
	t.Helper()
	dir := t.TempDir()

	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		w.Write([]byte(installerBody))
	}))
	t.Cleanup(ts.Close)

	return &fixture{
		tool: types.ToolConfig{
			Name: "OpenSSL",
			Path: filepath.Join(dir, "OpenSSL-Win64", "bin", "openssl.exe"),
		},
		installer: types.InstallerConfig{
			URL:  ts.URL + "/Win64OpenSSL.exe",
			Path: filepath.Join(dir, "Win64OpenSSL.exe"),
		},
		relay:  relay.New(),
		exec:   &fakeExecutor{},
		hits:   &hits,
		server: ts,
	}
}

func (f *fixture) provisioner(t *testing.T) *Provisioner {
	return New(f.tool, f.installer, f.relay, zaptest.NewLogger(t), f.server.Client(), f.exec)
}

func drain(r *relay.Relay) []types.StatusMessage {
	var got []types.StatusMessage
	r.Drain(func(m types.StatusMessage) { got = append(got, m) })
	return got
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("provisioning did not finish")
	}
}

func texts(msgs []types.StatusMessage) []string {
	var out []string
	for _, m := range msgs {
		if !m.Ready {
			out = append(out, m.Text)
		}
	}
	return out
}

func assertReadyLastOnce(t *testing.T, msgs []types.StatusMessage) {
	t.Helper()
	require.NotEmpty(t, msgs)
	ready := 0
	for _, m := range msgs {
		if m.Ready {
			ready++
		}
	}
	assert.Equal(t, 1, ready, "ready sentinel must be sent exactly once")
	assert.True(t, msgs[len(msgs)-1].Ready, "ready sentinel must be the last message")
}

func TestEnsureAvailable_ToolPresent(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.tool.Path), 0o755))
	require.NoError(t, os.WriteFile(f.tool.Path, []byte("bin"), 0o755))

	p := f.provisioner(t)
	done := p.EnsureAvailable(context.Background())

	// Closed synchronously, no goroutine involved.
	select {
	case <-done:
	default:
		t.Fatal("done channel should already be closed")
	}

	msgs := drain(f.relay)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Ready)
	assert.Zero(t, atomic.LoadInt32(f.hits), "no network calls expected")
	assert.Empty(t, f.exec.Calls(), "no process calls expected")
	assert.Nil(t, p.Task())
}

func TestEnsureAvailable_DownloadsAndInstalls(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.exec.toolPath = f.tool.Path
	p := f.provisioner(t)

	wait(t, p.EnsureAvailable(context.Background()))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	assert.Equal(t, []string{
		"Downloading OpenSSL installer...",
		"Installing OpenSSL... Please wait.",
		"OpenSSL installation complete.",
	}, texts(msgs))

	assert.Equal(t, int32(1), atomic.LoadInt32(f.hits))
	assert.Equal(t, [][]string{{f.installer.Path, "/verysilent", "/norestart"}}, f.exec.Calls())

	data, err := os.ReadFile(f.installer.Path)
	require.NoError(t, err)
	assert.Equal(t, installerBody, string(data))

	task := p.Task()
	require.NotNil(t, task)
	assert.Equal(t, types.InstallSucceeded, task.Status)
	assert.True(t, task.Downloaded)
	assert.True(t, p.ToolPresent())
}

func TestEnsureAvailable_ExistingArtifactSkipsDownload(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	require.NoError(t, os.WriteFile(f.installer.Path, []byte("cached"), 0o644))
	p := f.provisioner(t)

	wait(t, p.EnsureAvailable(context.Background()))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	assert.Zero(t, atomic.LoadInt32(f.hits), "existing artifact must not be downloaded again")
	assert.Len(t, f.exec.Calls(), 1, "installation still runs")
	assert.NotContains(t, texts(msgs), "Downloading OpenSSL installer...")

	task := p.Task()
	assert.Equal(t, types.InstallSucceeded, task.Status)
	assert.False(t, task.Downloaded)
}

func TestEnsureAvailable_InstallerNonZeroExit(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.exec.err = &toolexec.Error{Kind: toolexec.KindExit, Name: "installer", ExitCode: 2, Stderr: "access denied"}
	p := f.provisioner(t)

	wait(t, p.EnsureAvailable(context.Background()))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	got := texts(msgs)
	assert.Equal(t, "OpenSSL installation failed: access denied", got[len(got)-1])

	task := p.Task()
	assert.Equal(t, types.InstallFailed, task.Status)
	assert.Contains(t, task.Reason, "access denied")
}

func TestEnsureAvailable_InstallerSpawnFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.exec.err = &toolexec.Error{Kind: toolexec.KindSpawn, Name: "installer", Err: errors.New("permission denied")}
	p := f.provisioner(t)

	wait(t, p.EnsureAvailable(context.Background()))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	got := texts(msgs)
	assert.Contains(t, got[len(got)-1], "Error installing OpenSSL:")
	assert.Contains(t, got[len(got)-1], "permission denied")
}

func TestEnsureAvailable_DownloadFailure(t *testing.T) {
	f := newFixture(t, http.StatusNotFound)
	p := f.provisioner(t)

	wait(t, p.EnsureAvailable(context.Background()))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	got := texts(msgs)
	assert.Contains(t, got[len(got)-1], "Error installing OpenSSL:")
	assert.Contains(t, got[len(got)-1], "HTTP 404")
	assert.Empty(t, f.exec.Calls(), "installer must not run after a failed download")

	_, err := os.Stat(f.installer.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, types.InstallFailed, p.Task().Status)
}

func TestEnsureAvailable_Checksum(t *testing.T) {
	sum := sha256.Sum256([]byte(installerBody))
	good := hex.EncodeToString(sum[:])

	tests := []struct {
		name        string
		digest      string
		wantInstall bool
	}{
		{name: "matching digest installs", digest: good, wantInstall: true},
		{name: "upper-case digest installs", digest: "  " + strings.ToUpper(good) + "\n", wantInstall: true},
		{name: "mismatch aborts", digest: "deadbeef", wantInstall: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, http.StatusOK)
			f.installer.SHA256 = tt.digest
			p := f.provisioner(t)

			wait(t, p.EnsureAvailable(context.Background()))
			msgs := drain(f.relay)
			assertReadyLastOnce(t, msgs)

			if tt.wantInstall {
				assert.Len(t, f.exec.Calls(), 1)
				assert.Equal(t, types.InstallSucceeded, p.Task().Status)
				return
			}
			assert.Empty(t, f.exec.Calls())
			assert.Contains(t, p.Task().Reason, ErrChecksumMismatch.Error())
			_, err := os.Stat(f.installer.Path)
			assert.True(t, os.IsNotExist(err), "mismatched artifact is removed")
		})
	}
}

func TestEnsureAvailable_Canceled(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	p := f.provisioner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wait(t, p.EnsureAvailable(ctx))

	msgs := drain(f.relay)
	assertReadyLastOnce(t, msgs)
	assert.Zero(t, atomic.LoadInt32(f.hits))
	assert.Empty(t, f.exec.Calls())
	assert.Equal(t, types.InstallFailed, p.Task().Status)
	assert.Contains(t, p.Task().Reason, context.Canceled.Error())
}
