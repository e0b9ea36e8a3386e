// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdiddy/p7m-converter/internal/toolexec"
)

// ErrToolMissing is returned for every file while the conversion tool is
// not installed.
var ErrToolMissing = errors.New("conversion tool not installed")

// OpenSSLExtractor extracts signed content with `openssl smime -verify`.
//
// The signature is deliberately not checked (-noverify): the files come
// from a trusted source and only their payload is wanted. Changing this
// changes which files convert successfully.
type OpenSSLExtractor struct {
	toolPath string
	exec     toolexec.Executor
}

// NewOpenSSLExtractor returns an extractor running the binary at toolPath.
// A nil executor runs real processes.
func NewOpenSSLExtractor(toolPath string, exec toolexec.Executor) *OpenSSLExtractor {
	if exec == nil {
		exec = toolexec.OSExecutor{}
	}
	return &OpenSSLExtractor{toolPath: toolPath, exec: exec}
}

// Args returns the openssl arguments used for one file.
func Args(input, output string) []string {
	return []string{
		"smime", "-verify", "-noverify", "-binary",
		"-inform", "DER",
		"-in", input,
		"-out", output,
		"-outform", "PEM",
	}
}

// Extract runs openssl once for input.
func (o *OpenSSLExtractor) Extract(ctx context.Context, input, output string) error {
	if _, err := os.Stat(o.toolPath); err != nil {
		return fmt.Errorf("%w: %s", ErrToolMissing, o.toolPath)
	}
	if _, err := o.exec.Run(ctx, o.toolPath, Args(input, output)...); err != nil {
		return err
	}
	return nil
}
