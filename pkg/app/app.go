// Package app is the application context: it owns the browser session, the
// navigator, the batch orchestrator and the run history, and exposes the
// caller commands on top of them. It is built once at process start and
// handed to the command layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/catalogsync/pkg/batch"
	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/content"
	"github.com/entrhq/catalogsync/pkg/logging"
	"github.com/entrhq/catalogsync/pkg/report"
	"github.com/entrhq/catalogsync/pkg/store"
	"github.com/entrhq/catalogsync/pkg/types"
	"github.com/entrhq/catalogsync/pkg/workflow"
)

// ErrNoHistory is returned by history commands when no store is configured.
var ErrNoHistory = errors.New("run history is not configured")

// ErrNothingToRetry is returned by RetryRun when a run has no failed items.
var ErrNothingToRetry = errors.New("run has no failed items")

// Session is the browser session the application drives.
// *browser.Manager implements it.
type Session interface {
	Launch() (browser.SessionInfo, error)
	IsAlive() bool
	Status() browser.Status
	Screenshot(name string) (string, bool)
	Teardown() bool
}

// Navigator runs the target application's workflow on the session.
// *workflow.Navigator implements it.
type Navigator interface {
	batch.ItemProcessor
	OpenLanding(ctx context.Context) error
	CheckAuthenticated(ctx context.Context) bool
	State() workflow.State
	Reset()
}

// Deps are the collaborators of an App. Generator, Store and Artifacts are
// optional.
type Deps struct {
	Session   Session
	Navigator Navigator
	Generator content.Generator
	Store     *store.Store
	Artifacts *report.ArtifactWriter
}

// Status combines the batch, session and navigation views.
type Status struct {
	batch.Status
	Session    browser.Status `json:"session"`
	Navigation string         `json:"navigation"`
}

// runRecord tracks a batch until its batch_end event is handled.
type runRecord struct {
	source  string
	items   []types.Item
	results []types.ItemResult
}

// App is the application context.
type App struct {
	cfg       *config.Config
	session   Session
	nav       Navigator
	orch      *batch.Orchestrator
	gen       content.Generator
	store     *store.Store
	artifacts *report.ArtifactWriter
	logger    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu also spans ProcessItems so a run is registered before the
	// dispatcher can observe its events.
	mu      sync.Mutex
	runs    map[string]*runRecord
	last    *report.RunSummary
	subs    map[int]chan *types.Event
	nextSub int

	shutdownOnce sync.Once
}

// New wires an App from deps and starts its event dispatcher. Shutdown must
// be called to release it.
func New(cfg *config.Config, deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:       cfg,
		session:   deps.Session,
		nav:       deps.Navigator,
		gen:       deps.Generator,
		store:     deps.Store,
		artifacts: deps.Artifacts,
		logger:    logging.NewLogger("app"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		runs:      make(map[string]*runRecord),
		subs:      make(map[int]chan *types.Event),
	}
	a.orch = batch.New(deps.Navigator, deps.Session, batch.OptionsFromConfig(cfg.Batch))
	go a.dispatch()
	return a
}

// Open builds the production App from configuration: a Playwright session,
// the configured content generator, the SQLite run history and the artifact
// writer.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewLogger("app")

	gen, err := content.New(ctx, cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to create content generator: %w", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	mgr := browser.NewManager(cfg.Browser)
	nav := workflow.New(mgr, cfg.Target, workflow.WithStateObserver(func(from, to workflow.State) {
		logger.Infof("navigation %s -> %s", from, to)
	}))

	return New(cfg, Deps{
		Session:   mgr,
		Navigator: nav,
		Generator: gen,
		Store:     st,
		Artifacts: report.NewArtifactWriter(cfg.Artifacts),
	}), nil
}

// StartSession launches the browser and opens the login page for the
// operator to authenticate.
func (a *App) StartSession(ctx context.Context) (browser.SessionInfo, error) {
	info, err := a.session.Launch()
	if err != nil {
		return browser.SessionInfo{}, err
	}
	if err := a.nav.OpenLanding(ctx); err != nil {
		return info, err
	}
	a.logger.Infof("session started; waiting for login")
	return info, nil
}

// CheckAuthenticated reports whether the operator has logged in.
func (a *App) CheckAuthenticated(ctx context.Context) bool {
	if !a.session.IsAlive() {
		return false
	}
	return a.nav.CheckAuthenticated(ctx)
}

// CloseSession stops any active batch and tears the session down.
func (a *App) CloseSession() bool {
	if a.orch.State().Active() {
		a.orch.Stop()
	}
	ok := a.session.Teardown()
	a.nav.Reset()
	return ok
}

// ProcessItems starts a batch over items on the live session. source labels
// the run in history and artifacts. It returns the run id without waiting.
func (a *App) ProcessItems(items []types.Item, source string) (string, error) {
	if len(items) == 0 {
		return "", batch.ErrEmptyBatch
	}
	if !a.session.IsAlive() {
		return "", browser.ErrNotRunning
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id, err := a.orch.ProcessItems(a.ctx, items, a.contentFunc())
	if err != nil {
		return "", err
	}
	a.runs[id] = &runRecord{source: source, items: items}
	return id, nil
}

func (a *App) contentFunc() batch.ContentFunc {
	if a.gen == nil {
		return nil
	}
	return a.gen.Generate
}

// RetryRun resubmits the failed items of a previous run.
func (a *App) RetryRun(ctx context.Context, runID string) (string, error) {
	if a.store == nil {
		return "", ErrNoHistory
	}
	items, err := a.store.FailedItems(ctx, runID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", ErrNothingToRetry
	}
	return a.ProcessItems(items, "retry:"+runID)
}

// Pause pauses the running batch.
func (a *App) Pause() bool { return a.orch.Pause() }

// Resume resumes a paused batch.
func (a *App) Resume() bool { return a.orch.Resume() }

// Stop stops the active batch, waiting up to the configured stop timeout.
func (a *App) Stop() bool { return a.orch.Stop() }

// Wait blocks until the current batch has finished.
func (a *App) Wait(ctx context.Context) error { return a.orch.Wait(ctx) }

// Status returns the combined status view.
func (a *App) Status() Status {
	return Status{
		Status:     a.orch.Status(),
		Session:    a.session.Status(),
		Navigation: a.nav.State().String(),
	}
}

// LastSummary returns the summary of the most recently finished batch.
func (a *App) LastSummary() *report.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// History lists the most recent runs.
func (a *App) History(ctx context.Context, limit int) ([]store.Run, error) {
	if a.store == nil {
		return nil, ErrNoHistory
	}
	return a.store.ListRuns(ctx, limit)
}

// RunResults returns the recorded item results of a run.
func (a *App) RunResults(ctx context.Context, runID string) ([]types.ItemResult, error) {
	if a.store == nil {
		return nil, ErrNoHistory
	}
	return a.store.Results(ctx, runID)
}

// Shutdown stops the active batch, closes the session, drains the event
// dispatcher and closes the run history. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		if !a.orch.Stop() {
			a.logger.Warnf("batch worker did not exit before shutdown")
		}
		if werr := a.orch.Wait(ctx); werr != nil {
			err = werr
		}
		a.session.Teardown()
		a.nav.Reset()

		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}

		if a.store != nil {
			if cerr := a.store.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		_ = logging.Sync()
	})
	return err
}
