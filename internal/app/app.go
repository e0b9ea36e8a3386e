// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package app owns the application lifecycle: it builds the logger, the
// status relay, the provisioner, the batch converter, and the history
// store from one Config, and drives them from a single polling loop that
// plays the role of the presentation thread.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/p7m-converter/internal/convert"
	"github.com/pdiddy/p7m-converter/internal/history"
	"github.com/pdiddy/p7m-converter/internal/logging"
	"github.com/pdiddy/p7m-converter/internal/provision"
	"github.com/pdiddy/p7m-converter/internal/relay"
	"github.com/pdiddy/p7m-converter/internal/toolexec"
	"github.com/pdiddy/p7m-converter/pkg/types"
)

var (
	// ErrNotReady is returned when a conversion is requested before
	// provisioning has relayed the ready sentinel.
	ErrNotReady = errors.New("conversion tool is not ready")

	// ErrBusy is returned when a conversion is already running.
	ErrBusy = errors.New("a conversion is already running")
)

// Deps overrides collaborators, mainly for tests. Zero fields get the
// production implementation.
type Deps struct {
	Logger     *zap.Logger
	HTTPClient *http.Client
	Exec       toolexec.Executor
	Out        io.Writer
	ErrOut     io.Writer
}

// App is the application context.
type App struct {
	cfg      types.Config
	logger   *zap.Logger
	closeLog func() error

	relay   *relay.Relay
	prov    *provision.Provisioner
	batch   *convert.Batch
	history *history.Store
	console *Console

	provDone <-chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	current *Run
}

// Run is one conversion started by StartConversion. Job and Result may only
// be read after Done is closed.
type Run struct {
	Job      *types.ConversionJob
	Progress *convert.Progress
	Done     <-chan struct{}
	result   convert.BatchResult
}

// Result returns the batch outcome. It blocks until the run finishes.
func (r *Run) Result() convert.BatchResult {
	<-r.Done
	return r.result
}

// New builds the application context from cfg.
func New(cfg types.Config, deps Deps) (*App, error) {
	a := &App{cfg: cfg, closeLog: func() error { return nil }}

	a.logger = deps.Logger
	if a.logger == nil {
		logger, closeFn, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.logger = logger
		a.closeLog = closeFn
	}
	a.logger.Info("Application started.")

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			a.closeLog()
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.history = store
	}

	out, errOut := deps.Out, deps.ErrOut
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}

	a.relay = relay.New()
	a.prov = provision.New(cfg.Tool, cfg.Installer, a.relay, a.logger.Named("provision"), deps.HTTPClient, deps.Exec)
	a.batch = convert.NewBatch(convert.NewOpenSSLExtractor(cfg.Tool.Path, deps.Exec), a.logger.Named("convert"))
	a.console = NewConsole(out, errOut, cfg.Tool.Name, a.logger)
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Console returns the presentation state.
func (a *App) Console() *Console { return a.console }

// History returns the history store, or nil when history is disabled.
func (a *App) History() *history.Store { return a.history }

// Provisioner returns the dependency provisioner.
func (a *App) Provisioner() *provision.Provisioner { return a.prov }

// Start kicks off provisioning. It returns immediately. The console
// announces readiness only after an installation attempt.
func (a *App) Start(ctx context.Context) {
	a.provDone = a.prov.EnsureAvailable(ctx)
	a.console.AnnounceReady(a.prov.Task() != nil)
}

// Tick drains the relay into the console and renders conversion progress.
// It is the body of the polling loop.
func (a *App) Tick() {
	a.relay.Drain(a.console.Dispatch)

	a.mu.Lock()
	run := a.current
	a.mu.Unlock()
	if run != nil {
		a.console.Render(run.Progress.Snapshot())
	}
}

// Operational reports whether conversions may start.
func (a *App) Operational() bool {
	return a.console.Operational()
}

// Scan lists the convertible files in dir and shows them on the console.
func (a *App) Scan(dir string) ([]string, error) {
	files, err := convert.Discover(dir, a.cfg.Convert.InputSuffix)
	if err != nil {
		return nil, err
	}
	a.logger.Info(fmt.Sprintf("Selected folder contains %d %s files.", len(files), a.cfg.Convert.InputSuffix), zap.String("dir", dir))
	a.console.ShowFiles(files, a.cfg.Convert.InputSuffix)
	return files, nil
}

// StartConversion runs a batch over inputs on a background goroutine. It
// fails with ErrNotReady before the ready sentinel has been dispatched and
// with ErrBusy while another run is active.
func (a *App) StartConversion(ctx context.Context, dir string, inputs []string) (*Run, error) {
	if !a.Operational() {
		return nil, ErrNotReady
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		select {
		case <-a.current.Done:
		default:
			return nil, ErrBusy
		}
	}

	done := make(chan struct{})
	run := &Run{
		Job:      convert.NewJob(dir, inputs, a.cfg.Convert),
		Progress: convert.NewProgress(),
		Done:     done,
	}
	a.current = run
	a.console.BeginRun()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(done)
		run.result = a.batch.Run(ctx, run.Job, run.Progress)
		a.record(run.Job)
	}()
	return run, nil
}

func (a *App) record(job *types.ConversionJob) {
	if a.history == nil {
		return
	}
	// The run's context may already be canceled; the record is still wanted.
	if err := a.history.Record(context.Background(), job); err != nil {
		a.logger.Error("recording conversion history", zap.String("job", job.ID), zap.Error(err))
	}
}

// Close waits for background work and releases resources.
func (a *App) Close() error {
	if a.provDone != nil {
		<-a.provDone
	}
	a.wg.Wait()

	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	a.logger.Info("Application stopped.")
	errs = append(errs, a.closeLog())
	return errors.Join(errs...)
}
