// Package workflow drives the target application through the fixed
// per-item procedure: open the catalog, search, select the result, open the
// editor, write fields and save.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
	"github.com/entrhq/catalogsync/pkg/types"
)

// Page is the set of session primitives the navigator needs.
// *browser.Manager implements it.
type Page interface {
	Navigate(url string) (string, error)
	Reload() error
	WaitFor(selector string, state browser.ElementState, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	ClickNth(selector string, index int, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Clear(selector string, timeout time.Duration) error
	Type(selector, text string, delay time.Duration) error
	Press(selector, key string) error
	OuterHTML(selector string, timeout time.Duration) (string, error)
	EvaluateOn(selector, script string, arg interface{}, timeout time.Duration) (interface{}, error)
}

// Step names, in execution order.
const (
	StepNavigateCatalog = "navigate_catalog"
	StepSearch          = "search"
	StepSelectResult    = "select_result"
	StepOpenEditorTab   = "open_editor_tab"
	StepOpenEditor      = "open_editor"
	StepUpdateFields    = "update_fields"
	StepSave            = "save"
)

// TotalSteps is the length of the per-item procedure.
const TotalSteps = 7

// Navigator translates "find record X and apply fields Y" into page actions.
// It borrows the session; it never launches or tears it down.
type Navigator struct {
	page   Page
	target config.TargetConfig
	logger *logging.Logger

	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	observer func(from, to State)

	mu    sync.RWMutex
	state State
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithSleep replaces the settle-wait function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(n *Navigator) {
		n.sleep = fn
	}
}

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn func(from, to State)) Option {
	return func(n *Navigator) {
		n.observer = fn
	}
}

// New creates a navigator over page.
func New(page Page, target config.TargetConfig, opts ...Option) *Navigator {
	n := &Navigator{
		page:   page,
		target: target,
		logger: logging.NewLogger("workflow"),
		sleep:  sleepCtx,
		now:    time.Now,
		state:  StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current navigation state.
func (n *Navigator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Navigator) setState(s State) {
	n.mu.Lock()
	from := n.state
	n.state = s
	n.mu.Unlock()

	if from != s {
		n.logger.Debugf("state %s -> %s", from, s)
		if n.observer != nil {
			n.observer(from, s)
		}
	}
}

// Reset returns the navigator to the unauthenticated state, used when the
// session is closed.
func (n *Navigator) Reset() {
	n.setState(StateUnauthenticated)
}

// OpenLanding loads the login page and waits for a human to authenticate.
func (n *Navigator) OpenLanding(ctx context.Context) error {
	if _, err := n.page.Navigate(n.target.LoginURL); err != nil {
		n.setState(StateUnauthenticated)
		return fmt.Errorf("failed to open login page: %w", err)
	}
	n.setState(StateAwaitingLogin)
	return n.sleep(ctx, n.target.StepSettle)
}

// CheckAuthenticated probes the logged-in indicators and, when any is
// visible, moves the navigator to the catalog-ready state.
func (n *Navigator) CheckAuthenticated(ctx context.Context) bool {
	strategies := make([]Strategy, 0, len(n.target.AuthIndicators))
	for _, sel := range n.target.AuthIndicators {
		sel := sel
		strategies = append(strategies, Strategy{
			Name: sel,
			Attempt: func(context.Context) error {
				return n.page.WaitFor(sel, browser.StateVisible, n.probeTimeout())
			},
		})
	}

	out := Resolve(ctx, strategies)
	if !out.OK() {
		return false
	}
	if !n.State().Authenticated() {
		n.logger.Infof("authenticated (indicator %s)", out.Strategy)
		n.setState(StateCatalogReady)
	}
	return true
}

func (n *Navigator) probeTimeout() time.Duration {
	if n.target.ProbeTimeout > 0 {
		return n.target.ProbeTimeout
	}
	return browser.DefaultProbeTimeout
}

// step is one entry of the per-item procedure.
type step struct {
	name        string
	description string
	run         func(ctx context.Context) (message, strategy string, err error)
}

// ProcessItem runs the full procedure for one record. onProgress, when not
// nil, is called before each step. The first failing step ends the item.
// The navigator always returns to the catalog-ready state afterwards.
func (n *Navigator) ProcessItem(ctx context.Context, id string, fields types.Fields, onProgress func(types.Progress)) types.ItemResult {
	start := n.now()
	result := types.ItemResult{
		ItemID:         id,
		StartedAt:      start,
		StepsCompleted: []string{},
	}
	defer n.setState(StateCatalogReady)

	report := &fieldReport{}
	steps := n.steps(id, fields, report)

	for i, s := range steps {
		if onProgress != nil {
			onProgress(types.Progress{
				ItemID:      id,
				StepIndex:   i + 1,
				TotalSteps:  len(steps),
				Description: s.description,
			})
		}

		stepStart := n.now()
		var (
			msg, strategy string
			err           error
		)
		if err = ctx.Err(); err == nil {
			msg, strategy, err = s.run(ctx)
		}

		sr := types.StepResult{
			Name:     s.name,
			Success:  err == nil,
			Message:  msg,
			Strategy: strategy,
			Duration: n.now().Sub(stepStart),
		}
		if err != nil {
			sr.Error = err.Error()
			result.Steps = append(result.Steps, sr)

			stepErr := &StepError{Step: s.name, Err: err}
			result.FailedStep = s.name
			result.Error = stepErr.Error()
			result.Err = stepErr
			n.logger.Warnf("item %s: %v", id, stepErr)
			break
		}

		result.Steps = append(result.Steps, sr)
		result.StepsCompleted = append(result.StepsCompleted, s.name)
	}

	result.FieldsUpdated = report.updated
	result.FieldErrors = report.errors
	result.Success = result.Err == nil
	result.Duration = n.now().Sub(start)
	return result
}

func (n *Navigator) steps(id string, fields types.Fields, report *fieldReport) []step {
	return []step{
		{StepNavigateCatalog, "Opening catalog", func(ctx context.Context) (string, string, error) {
			return n.navigateCatalog(ctx)
		}},
		{StepSearch, fmt.Sprintf("Searching %s", id), func(ctx context.Context) (string, string, error) {
			return n.search(ctx, id)
		}},
		{StepSelectResult, "Selecting result", func(ctx context.Context) (string, string, error) {
			return n.selectResult(ctx, id)
		}},
		{StepOpenEditorTab, "Opening shop tab", func(ctx context.Context) (string, string, error) {
			return n.openEditorTab(ctx)
		}},
		{StepOpenEditor, "Opening editor", func(ctx context.Context) (string, string, error) {
			return n.openEditor(ctx)
		}},
		{StepUpdateFields, "Updating fields", func(ctx context.Context) (string, string, error) {
			return n.updateFields(ctx, fields, report)
		}},
		{StepSave, "Saving changes", func(ctx context.Context) (string, string, error) {
			return n.save(ctx)
		}},
	}
}

func (n *Navigator) searchReady(context.Context) error {
	return n.page.WaitFor(n.target.SearchInput, browser.StateVisible, n.target.ElementTimeout)
}

// navigateCatalog reaches the catalog list: direct URL, then a refresh,
// then each catalog tab, each verified by the search control.
func (n *Navigator) navigateCatalog(ctx context.Context) (string, string, error) {
	t := n.target
	strategies := []Strategy{
		{Name: "direct-url", Attempt: func(ctx context.Context) error {
			if _, err := n.page.Navigate(t.CatalogURL); err != nil {
				return err
			}
			if err := n.sleep(ctx, t.StepSettle); err != nil {
				return err
			}
			return n.searchReady(ctx)
		}},
		{Name: "refresh", Attempt: func(ctx context.Context) error {
			if err := n.page.Reload(); err != nil {
				return err
			}
			if err := n.sleep(ctx, t.StepSettle); err != nil {
				return err
			}
			return n.searchReady(ctx)
		}},
	}
	for _, sel := range t.CatalogTabs {
		sel := sel
		strategies = append(strategies, Strategy{Name: "tab:" + sel, Attempt: func(ctx context.Context) error {
			if err := n.page.Click(sel, t.ElementTimeout); err != nil {
				return err
			}
			if err := n.sleep(ctx, t.StepSettle); err != nil {
				return err
			}
			return n.searchReady(ctx)
		}})
	}

	out := Resolve(ctx, strategies)
	if !out.OK() {
		return "", "", fmt.Errorf("catalog not reachable: %w", out.Err)
	}
	n.setState(StateCatalogReady)
	return "catalog ready", out.Strategy, nil
}

// search types the identifier key by key so the live filter runs, then
// waits for the results to settle.
func (n *Navigator) search(ctx context.Context, id string) (string, string, error) {
	t := n.target
	n.setState(StateSearching)

	if err := n.page.WaitFor(t.SearchInput, browser.StateVisible, t.ElementTimeout); err != nil {
		return "", "", err
	}
	if err := n.page.Clear(t.SearchInput, t.ElementTimeout); err != nil {
		return "", "", err
	}
	if err := n.page.Type(t.SearchInput, id, t.KeystrokeDelay); err != nil {
		return "", "", err
	}
	if err := n.sleep(ctx, t.SearchSettle); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("searched %s", id), "", nil
}

// selectResult opens the row matching id, falling back to the first row.
// An empty result table is ErrNotFound.
func (n *Navigator) selectResult(ctx context.Context, id string) (string, string, error) {
	t := n.target
	n.setState(StateSelecting)

	match := RowMatch{Index: -1}
	tableRead := false
	if html, err := n.page.OuterHTML(t.ResultsTable, n.probeTimeout()); err != nil {
		if errors.Is(err, browser.ErrNotRunning) {
			return "", "", err
		}
		n.logger.Debugf("results table unreadable: %v", err)
	} else if m, err := MatchRow(html, t.ResultRowCSS, id); err != nil {
		n.logger.Debugf("results table unparsable: %v", err)
	} else {
		match = m
		tableRead = true
	}

	if tableRead && match.Rows == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	strategies := []Strategy{
		{Name: "exact-match", Attempt: func(context.Context) error {
			if match.Index < 0 {
				return errNotApplicable
			}
			return n.page.ClickNth(t.ResultRows, match.Index, t.ElementTimeout)
		}},
		{Name: "first-row", Attempt: func(context.Context) error {
			if match.Rows == 0 {
				return errNotApplicable
			}
			n.logger.Warnf("no row contains %s, selecting the first of %d results", id, match.Rows)
			return n.page.ClickNth(t.ResultRows, 0, t.ElementTimeout)
		}},
		{Name: "first-cell", Attempt: func(context.Context) error {
			if tableRead || t.FirstResultFallback == "" {
				return errNotApplicable
			}
			return n.page.Click(t.FirstResultFallback, t.ElementTimeout)
		}},
	}

	out := Resolve(ctx, strategies)
	if !out.OK() {
		if errors.Is(out.Err, browser.ErrNotRunning) || errors.Is(out.Err, context.Canceled) {
			return "", "", out.Err
		}
		return "", "", fmt.Errorf("%w: %s (%v)", ErrNotFound, id, out.Err)
	}
	if err := n.sleep(ctx, t.StepSettle); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("selected %s", id), out.Strategy, nil
}

// openEditorTab activates the record's shop sub-view.
func (n *Navigator) openEditorTab(ctx context.Context) (string, string, error) {
	t := n.target
	strategies := make([]Strategy, 0, len(t.EditorTabs))
	for _, sel := range t.EditorTabs {
		sel := sel
		strategies = append(strategies, Strategy{Name: sel, Attempt: func(context.Context) error {
			if err := n.page.WaitFor(sel, browser.StateVisible, n.probeTimeout()); err != nil {
				return err
			}
			return n.page.Click(sel, t.ElementTimeout)
		}})
	}

	out := Resolve(ctx, strategies)
	if !out.OK() {
		return "", "", fmt.Errorf("editor tab not found: %w", out.Err)
	}
	if err := n.sleep(ctx, t.StepSettle); err != nil {
		return "", "", err
	}
	return "tab opened", out.Strategy, nil
}

// openEditor clicks an edit button and verifies the modal became visible.
func (n *Navigator) openEditor(ctx context.Context) (string, string, error) {
	t := n.target
	strategies := make([]Strategy, 0, len(t.EditButtons))
	for _, sel := range t.EditButtons {
		sel := sel
		strategies = append(strategies, Strategy{Name: sel, Attempt: func(ctx context.Context) error {
			if err := n.page.Click(sel, n.probeTimeout()); err != nil {
				return err
			}
			if err := n.sleep(ctx, t.StepSettle); err != nil {
				return err
			}
			return n.page.WaitFor(t.EditorModal, browser.StateVisible, t.ElementTimeout)
		}})
	}

	out := Resolve(ctx, strategies)
	if !out.OK() {
		return "", "", fmt.Errorf("editor did not open: %w", out.Err)
	}
	n.setState(StateEditorOpen)
	return "editor open", out.Strategy, nil
}

// updateFields writes every mapped field independently. The step fails
// only when fields were attempted and none could be written.
func (n *Navigator) updateFields(ctx context.Context, fields types.Fields, report *fieldReport) (string, string, error) {
	t := n.target
	if err := n.page.WaitFor(t.EditorModal, browser.StateVisible, t.ElementTimeout); err != nil {
		return "", "", err
	}

	if wantsSEO(fields) && t.SEOToggle != "" {
		if err := n.page.Click(t.SEOToggle, n.probeTimeout()); err != nil {
			n.logger.Debugf("seo section toggle unavailable: %v", err)
		} else if err := n.sleep(ctx, t.StepSettle); err != nil {
			return "", "", err
		}
	}

	for _, name := range fields.Keys() {
		fc, ok := t.Fields[name]
		if !ok {
			report.skipped = append(report.skipped, name)
			continue
		}
		if err := n.writeField(fc, fields[name]); err != nil {
			if errors.Is(err, browser.ErrNotRunning) {
				return "", "", err
			}
			report.errors = append(report.errors, types.FieldError{Field: name, Error: err.Error()})
			n.logger.Warnf("field %s not written: %v", name, err)
			continue
		}
		report.updated = append(report.updated, name)
	}

	if len(report.skipped) > 0 {
		n.logger.Debugf("fields without an editor mapping: %v", report.skipped)
	}
	if report.attempted() > 0 && len(report.updated) == 0 {
		return "", "", fmt.Errorf("no field could be written: %s: %s", report.errors[0].Field, report.errors[0].Error)
	}

	n.setState(StateFieldsUpdated)
	msg := fmt.Sprintf("%d fields updated", len(report.updated))
	if len(report.errors) > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, len(report.errors))
	}
	return msg, "", nil
}

// save persists the editor and waits for the modal to close.
func (n *Navigator) save(ctx context.Context) (string, string, error) {
	t := n.target
	if err := n.page.Click(t.SaveButton, t.ElementTimeout); err != nil {
		return "", "", err
	}
	saveTimeout := t.SaveTimeout
	if saveTimeout <= 0 {
		saveTimeout = t.ElementTimeout
	}
	if err := n.page.WaitFor(t.EditorModal, browser.StateHidden, saveTimeout); err != nil {
		return "", "", fmt.Errorf("editor still open after save: %w", err)
	}
	n.setState(StateSaved)
	// Already persisted; an interrupted settle wait does not undo the save.
	_ = n.sleep(ctx, t.StepSettle)
	return "saved", "", nil
}
