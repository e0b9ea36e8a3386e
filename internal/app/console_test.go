// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/p7m-converter/internal/convert"
	"github.com/pdiddy/p7m-converter/internal/relay"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewConsole(&out, &errOut, "OpenSSL", zaptest.NewLogger(t)), &out, &errOut
}

func TestConsole_DispatchInOrder(t *testing.T) {
	c, out, _ := newTestConsole(t)
	c.AnnounceReady(true)
	r := relay.New()
	r.Text("Downloading OpenSSL installer...")
	r.Text("Installing OpenSSL... Please wait.")
	r.Ready()

	assert.False(t, c.Operational())
	assert.Equal(t, 3, r.Drain(c.Dispatch))
	assert.True(t, c.Operational())

	assert.Equal(t, "Downloading OpenSSL installer...\n"+
		"Installing OpenSSL... Please wait.\n"+
		"OpenSSL ready. Select a folder to start converting files.\n", out.String())
}

func TestConsole_ReadyTwiceIsIdempotent(t *testing.T) {
	c, out, _ := newTestConsole(t)
	c.Dispatch(types.ReadyMessage())
	c.Dispatch(types.TextMessage("unrelated"))
	c.Dispatch(types.ReadyMessage())

	assert.True(t, c.Operational())
	assert.Equal(t, "unrelated", c.Status())
	assert.Equal(t, "unrelated\n", out.String())
}

func TestConsole_SilentReadyWhenToolPresent(t *testing.T) {
	c, out, _ := newTestConsole(t)
	c.Dispatch(types.ReadyMessage())

	assert.True(t, c.Operational())
	assert.Equal(t, "OpenSSL ready. Select a folder to start converting files.", c.Status())
	assert.Empty(t, out.String())
}

func TestConsole_ShowFiles(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{
			name:  "none",
			files: nil,
			want:  "No .p7m files found in the selected folder.\n",
		},
		{
			name:  "two",
			files: []string{"/in/a.p7m", "/in/b.p7m"},
			want:  "Found 2 .p7m files in the selected folder.\n1. a.p7m\n2. b.p7m\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out, _ := newTestConsole(t)
			c.ShowFiles(tt.files, ".p7m")
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestConsole_RenderOnlyPrintsChanges(t *testing.T) {
	c, out, errOut := newTestConsole(t)
	c.BeginRun()

	snap := convert.ProgressSnapshot{
		Current:   1,
		Total:     3,
		Completed: []string{"/in/a.pdf"},
		Status:    "Converted 1/3 files. 2 files remaining.",
	}
	c.Render(snap)
	c.Render(snap)

	snap.Current = 2
	snap.Completed = append(snap.Completed, "/in/b.pdf")
	snap.Failures = []convert.FileFailure{{Input: "/in/b.p7m", Message: "Error converting /in/b.p7m: bad"}}
	snap.Status = "Converted 2/3 files. 1 files remaining."
	c.Render(snap)

	assert.Equal(t, "  1. /in/a.pdf\n"+
		"Converted 1/3 files. 2 files remaining.\n"+
		"  2. /in/b.pdf\n"+
		"Converted 2/3 files. 1 files remaining.\n", out.String())
	assert.Equal(t, "Error: Error converting /in/b.p7m: bad\n", errOut.String())
}

func TestConsole_Summary(t *testing.T) {
	c, out, _ := newTestConsole(t)
	c.Summary(convert.BatchResult{Converted: 4, Failed: 1, Skipped: 2})
	assert.Equal(t, "\nBatch summary: 4 converted, 1 failed, 2 skipped (total: 7)\n", out.String())
}
