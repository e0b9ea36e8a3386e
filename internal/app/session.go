// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package app

import (
	"context"
	"errors"

	"github.com/pdiddy/p7m-converter/internal/convert"
	"github.com/pdiddy/p7m-converter/internal/relay"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

func (a *App) poller() relay.Poller {
	return relay.Poller{Interval: a.cfg.PollInterval}
}

// WaitReady polls until the ready sentinel has been dispatched. Start must
// have been called.
func (a *App) WaitReady(ctx context.Context) error {
	return a.poller().Run(ctx, func() bool {
		a.Tick()
		return a.Operational()
	})
}

// Install provisions the tool and waits for the outcome. The returned task
// is nil when the tool was already present.
func (a *App) Install(ctx context.Context) (*types.InstallationTask, error) {
	a.Start(ctx)
	if err := a.WaitReady(ctx); err != nil {
		return nil, err
	}
	<-a.provDone
	a.Tick()
	return a.prov.Task(), nil
}

// ConvertFolder is the whole interactive flow for one folder: provision,
// wait for readiness, list the files, convert them, and report progress on
// every tick. Per-file failures are reflected in the result, not the error.
func (a *App) ConvertFolder(ctx context.Context, dir string) (convert.BatchResult, error) {
	a.Start(ctx)
	if err := a.WaitReady(ctx); err != nil {
		return convert.BatchResult{}, err
	}

	files, err := a.Scan(dir)
	if err != nil {
		return convert.BatchResult{}, err
	}
	if len(files) == 0 {
		return convert.BatchResult{}, nil
	}

	run, err := a.StartConversion(ctx, dir, files)
	if err != nil {
		return convert.BatchResult{}, err
	}

	pollErr := a.poller().Run(ctx, func() bool {
		a.Tick()
		select {
		case <-run.Done:
			return true
		default:
			return false
		}
	})

	// The batch notices cancellation between files; wait for it to stop.
	result := run.Result()
	a.Tick()
	a.console.Summary(result)

	if pollErr != nil && !errors.Is(pollErr, context.Canceled) {
		return result, pollErr
	}
	return result, nil
}
