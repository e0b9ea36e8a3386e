// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFile(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("installer bytes"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "nested", "setup.exe")
	n, err := DownloadFile(context.Background(), ts.Client(), ts.URL, dest, "p7m-converter/test")
	require.NoError(t, err)

	assert.Equal(t, int64(len("installer bytes")), n)
	assert.Equal(t, "p7m-converter/test", gotUA)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "installer bytes", string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadFile_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "setup.exe")
	_, err := DownloadFile(context.Background(), ts.Client(), ts.URL, dest, "")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "destination must not exist after a failed download")
}
