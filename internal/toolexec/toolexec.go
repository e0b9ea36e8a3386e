// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package toolexec runs external executables (the conversion tool and its
// installer) and classifies their failures so callers can branch on the
// kind of failure instead of matching error text.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Kind classifies why an invocation failed.
type Kind int

const (
	// KindSpawn means the process could not be started (missing binary,
	// permission denied).
	KindSpawn Kind = iota + 1
	// KindExit means the process ran and exited non-zero.
	KindExit
	// KindIO means the process ran but collecting its result failed.
	KindIO
	// KindCanceled means the context ended before the process finished.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindExit:
		return "exit"
	case KindIO:
		return "io"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error describes a failed invocation.
type Error struct {
	Kind     Kind
	Name     string
	ExitCode int
	// Stderr is the captured diagnostic output, trimmed.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindExit:
		if e.Stderr != "" {
			return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	case KindSpawn:
		return fmt.Sprintf("starting %s: %v", e.Name, e.Err)
	case KindCanceled:
		return fmt.Sprintf("%s canceled: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("running %s: %v", e.Name, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Diagnostic returns the most useful text for a user-facing message:
// captured stderr when there is any, the error otherwise.
func (e *Error) Diagnostic() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Error()
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

// Result is the captured output of a successful invocation.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// OSExecutor is the production Executor backed by os/exec. Commands are
// started directly, never through a shell.
type OSExecutor struct{}

// Run starts name with args, waits for it, and returns its output. A
// non-nil error is always an *Error.
func (OSExecutor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &Error{Kind: KindCanceled, Name: name, ExitCode: -1, Err: ctxErr}
		}
		return Result{}, &Error{Kind: KindSpawn, Name: name, ExitCode: -1, Err: err}
	}

	err := cmd.Wait()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	diag := strings.TrimSpace(stderr.String())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, &Error{Kind: KindCanceled, Name: name, ExitCode: -1, Stderr: diag, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &Error{Kind: KindExit, Name: name, ExitCode: exitErr.ExitCode(), Stderr: diag, Err: err}
	}
	return res, &Error{Kind: KindIO, Name: name, ExitCode: -1, Stderr: diag, Err: err}
}
