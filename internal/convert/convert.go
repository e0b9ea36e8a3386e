// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts the signed content of .p7m files in batches.
// Files are processed one at a time in discovery order; a failing file is
// reported and the batch moves on to the next one.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/p7m-converter/internal/toolexec"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

// Extractor writes the content embedded in the signed file at input to
// output. OpenSSLExtractor is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, input, output string) error
}

// ConversionError reports a failed file. Err is typically a *toolexec.Error
// or wraps ErrToolMissing.
type ConversionError struct {
	Input string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("Error converting %s: %s", e.Input, e.Diagnostic())
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Diagnostic is the text shown to the user: the tool's stderr when it
// produced any, the error otherwise.
func (e *ConversionError) Diagnostic() string {
	var te *toolexec.Error
	if errors.As(e.Err, &te) {
		return te.Diagnostic()
	}
	return e.Err.Error()
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Failed    int
	Skipped   int
}

// Total returns the number of files attempted or skipped.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed + r.Skipped
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Discover lists the regular files directly inside dir whose names end in
// suffix, compared case-insensitively. Symlinks count when they resolve to
// a regular file. Paths are returned in the order the directory yields
// them, not sorted.
func Discover(dir, suffix string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening folder %s: %w", dir, err)
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("reading folder %s: %w", dir, err)
	}

	lower := strings.ToLower(suffix)
	var paths []string
	for _, e := range entries {
		if !isRegular(dir, e) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), lower) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// isRegular reports whether e is a regular file, following a symlink to
// its target.
func isRegular(dir string, e os.DirEntry) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

// OutputPath derives the output written for input: same directory, suffix
// replaced.
func OutputPath(input, inputSuffix, outputSuffix string) string {
	return types.ReplaceSuffix(input, inputSuffix, outputSuffix)
}

// NewJob builds a job over inputs, which must already be in discovery order.
func NewJob(dir string, inputs []string, cfg types.ConversionConfig) *types.ConversionJob {
	job := &types.ConversionJob{
		ID:           uuid.New().String(),
		Dir:          dir,
		Inputs:       append([]string(nil), inputs...),
		InputSuffix:  cfg.InputSuffix,
		OutputSuffix: cfg.OutputSuffix,
		Outcomes:     make([]types.Outcome, len(inputs)),
	}
	for i, in := range job.Inputs {
		job.Outcomes[i] = types.Outcome{
			Input:  in,
			Output: job.OutputPath(i),
			Status: types.OutcomePending,
		}
	}
	return job
}

// Batch runs an Extractor over every input of a job.
type Batch struct {
	ext    Extractor
	logger *zap.Logger
}

// NewBatch creates a Batch using ext for each file.
func NewBatch(ext Extractor, logger *zap.Logger) *Batch {
	return &Batch{ext: ext, logger: logger}
}

// Run converts the inputs of job in order, recording each outcome in job
// and publishing progress to prog after every file. It never stops on a
// failed file; it stops early only when ctx is done, marking the remaining
// inputs skipped. Run must not be called concurrently for the same job.
func (b *Batch) Run(ctx context.Context, job *types.ConversionJob, prog *Progress) BatchResult {
	var result BatchResult
	total := len(job.Inputs)
	prog.start(total)
	job.StartedAt = time.Now().UTC()

	b.logger.Info("Starting file conversion...", zap.String("job", job.ID), zap.String("dir", job.Dir), zap.Int("files", total))

	for i, input := range job.Inputs {
		if err := ctx.Err(); err != nil {
			for j := i; j < total; j++ {
				job.Outcomes[j].Status = types.OutcomeSkipped
				job.Outcomes[j].Reason = err.Error()
				result.Skipped++
			}
			b.logger.Warn("File conversion canceled", zap.String("job", job.ID), zap.Int("processed", i), zap.Int("files", total))
			job.FinishedAt = time.Now().UTC()
			prog.finish(fmt.Sprintf("Conversion canceled after %d/%d files.", i, total))
			return result
		}

		output := job.OutputPath(i)
		outcome := &job.Outcomes[i]

		// A file that has started runs to completion; cancellation takes
		// effect at the next boundary.
		if err := b.ext.Extract(context.WithoutCancel(ctx), input, output); err != nil {
			cerr := &ConversionError{Input: input, Err: err}
			b.logger.Error(cerr.Error(), zap.String("job", job.ID))
			outcome.Status = types.OutcomeFailed
			outcome.Reason = cerr.Diagnostic()
			result.Failed++
			prog.fail(FileFailure{Input: input, Message: cerr.Error()})
		} else {
			b.logger.Info(fmt.Sprintf("Converted %s to %s.", filepath.Base(input), filepath.Base(output)))
			outcome.Status = types.OutcomeSuccess
			result.Converted++
		}

		job.Current = i + 1
		remaining := total - job.Current
		prog.advance(job.Current, filepath.Base(output),
			fmt.Sprintf("Converted %d/%d files. %d files remaining.", job.Current, total, remaining))
	}

	job.FinishedAt = time.Now().UTC()
	b.logger.Info("File conversion completed.", zap.String("job", job.ID),
		zap.Int("converted", result.Converted), zap.Int("failed", result.Failed))
	prog.finish(fmt.Sprintf("Conversion completed! %d files converted.", total))
	return result
}
