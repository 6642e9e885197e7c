package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
	"github.com/entrhq/catalogsync/pkg/types"
)

// StepGenerateContent is the failed step reported when the content callback
// fails before the workflow starts.
const StepGenerateContent = "generate_content"

// ItemProcessor runs the per-item procedure against the live session.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, id string, fields types.Fields, onProgress func(types.Progress)) types.ItemResult
}

// Diagnostics captures evidence after an item fails. Screenshot is best
// effort and reports whether a file was written.
type Diagnostics interface {
	Screenshot(name string) (string, bool)
}

// ContentFunc produces the fields to write for an item.
type ContentFunc func(ctx context.Context, item types.Item) (types.Fields, error)

// Options tune the worker.
type Options struct {
	InterItemDelay time.Duration
	PausePoll      time.Duration
	StopTimeout    time.Duration
	EventBuffer    int
	Screenshots    bool
}

// OptionsFromConfig maps the batch config section onto Options.
func OptionsFromConfig(cfg config.BatchConfig) Options {
	return Options{
		InterItemDelay: cfg.InterItemDelay,
		PausePoll:      cfg.PausePoll,
		StopTimeout:    cfg.StopTimeout,
		EventBuffer:    cfg.EventBuffer,
		Screenshots:    cfg.Screenshots,
	}
}

func (o Options) withDefaults() Options {
	if o.PausePoll <= 0 {
		o.PausePoll = 500 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	if o.EventBuffer < 1 {
		o.EventBuffer = 256
	}
	if o.InterItemDelay < 0 {
		o.InterItemDelay = 0
	}
	return o
}

// Status is a point-in-time view of the orchestrator. Once State is Idle,
// Stats are final.
type Status struct {
	State       string           `json:"state"`
	CurrentTask string           `json:"current_task"`
	Stats       types.BatchStats `json:"stats"`
}

// snapshot is published whole; it is never modified after Store.
type snapshot struct {
	task  string
	stats types.BatchStats
}

// run is the bookkeeping of one batch.
type run struct {
	id       string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Orchestrator processes batches of items on a single background worker.
// Control methods are safe to call from any goroutine at any time.
type Orchestrator struct {
	processor ItemProcessor
	diag      Diagnostics
	opts      Options
	logger    *logging.Logger
	now       func() time.Time

	state   atomic.Int32
	snap    atomic.Pointer[snapshot]
	dropped atomic.Int64
	events  chan *types.Event

	mu      sync.Mutex
	current *run
}

// New creates an orchestrator. diag may be nil.
func New(processor ItemProcessor, diag Diagnostics, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	o := &Orchestrator{
		processor: processor,
		diag:      diag,
		opts:      opts,
		logger:    logging.NewLogger("batch"),
		now:       time.Now,
		events:    make(chan *types.Event, opts.EventBuffer),
	}
	o.snap.Store(&snapshot{stats: types.BatchStats{Errors: []types.ErrorRecord{}}})
	return o
}

// Events returns the channel all batch events are delivered on. Events are
// dropped, and counted in BatchStats.EventsDropped, when it is full.
func (o *Orchestrator) Events() <-chan *types.Event {
	return o.events
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// ProcessItems starts a batch and returns its run id without waiting for it.
// ctx bounds the whole batch. generate may be nil, in which case each item's
// own Fields are written.
func (o *Orchestrator) ProcessItems(ctx context.Context, items []types.Item, generate ContentFunc) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyBatch
	}

	queue := make([]types.Item, len(items))
	copy(queue, items)

	// Only ProcessItems leaves Idle, and it holds mu, so the fresh snapshot
	// is published before any reader can observe Running.
	o.mu.Lock()
	if State(o.state.Load()) != StateIdle {
		o.mu.Unlock()
		return "", ErrBatchActive
	}
	r := &run{
		id:   uuid.NewString(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	o.dropped.Store(0)
	stats := types.BatchStats{
		RunID:     r.id,
		Total:     len(queue),
		StartTime: o.now(),
		Errors:    []types.ErrorRecord{},
	}
	o.snap.Store(&snapshot{stats: stats})
	o.state.Store(int32(StateRunning))
	o.current = r
	o.mu.Unlock()

	recordState(StateRunning)
	o.emit(types.NewStateChangeEvent(r.id, StateIdle.String(), StateRunning.String()))
	o.emit(types.NewBatchStartEvent(r.id, stats.Clone()))
	o.logf(r.id, types.LogInfo, "batch %s started with %d items", r.id, len(queue))

	go o.work(ctx, r, queue, generate)
	return r.id, nil
}

// Pause asks the worker to hold before the next item. It reports whether a
// running batch was paused.
func (o *Orchestrator) Pause() bool {
	return o.transition(StateRunning, StatePaused, "batch paused")
}

// Resume continues a paused batch from the next unprocessed item.
func (o *Orchestrator) Resume() bool {
	return o.transition(StatePaused, StateRunning, "batch resumed")
}

func (o *Orchestrator) transition(from, to State, msg string) bool {
	if !o.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	id := o.runID()
	recordState(to)
	o.emit(types.NewStateChangeEvent(id, from.String(), to.String()))
	o.logf(id, types.LogInfo, "%s", msg)
	return true
}

// Stop asks the worker to exit before the next item and waits up to the
// configured stop timeout for it. The item in progress always completes.
// It reports whether the worker has exited.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	r := o.current
	var (
		from    State
		changed bool
	)
	for {
		cur := State(o.state.Load())
		if cur == StateIdle {
			o.mu.Unlock()
			return true
		}
		if cur == StateStopping {
			break
		}
		if o.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
			from, changed = cur, true
			break
		}
	}
	o.mu.Unlock()

	if changed {
		recordState(StateStopping)
		o.emit(types.NewStateChangeEvent(r.id, from.String(), StateStopping.String()))
		o.logf(r.id, types.LogWarning, "stop requested")
	}
	r.requestStop()

	timer := time.NewTimer(o.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
		return true
	case <-timer.C:
		o.logger.Warnf("worker for batch %s still busy after %s", r.id, o.opts.StopTimeout)
		return false
	}
}

// Wait blocks until the most recent batch has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a consistent snapshot of state, current task and stats.
// The state is read before the snapshot; a new batch publishes its snapshot
// before it becomes Running.
func (o *Orchestrator) Status() Status {
	state := o.State()
	s := o.snap.Load()
	return Status{
		State:       state.String(),
		CurrentTask: s.task,
		Stats:       s.stats.Clone(),
	}
}

func (o *Orchestrator) runID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return ""
	}
	return o.current.id
}

func (o *Orchestrator) work(ctx context.Context, r *run, items []types.Item, generate ContentFunc) {
	attempted := 0
	defer func() {
		o.finish(r, len(items), attempted)
	}()

	for i, item := range items {
		if !o.waitWhilePaused(ctx, r) {
			return
		}
		if o.State() == StateStopping || ctx.Err() != nil {
			return
		}

		o.setTask(fmt.Sprintf("%s (%d/%d)", item.ID, i+1, len(items)))
		result := o.processOne(ctx, r.id, item, generate)
		o.record(result)
		attempted++
		o.emit(types.NewItemCompleteEvent(r.id, result))

		if i < len(items)-1 && !o.delay(ctx, r) {
			return
		}
	}
}

// waitWhilePaused polls the state while paused. It returns false when the
// batch should end instead.
func (o *Orchestrator) waitWhilePaused(ctx context.Context, r *run) bool {
	for o.State() == StatePaused {
		timer := time.NewTimer(o.opts.PausePoll)
		select {
		case <-timer.C:
		case <-r.stop:
			timer.Stop()
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
	return true
}

// delay waits the inter-item delay; false means it was cut short by stop or
// cancellation.
func (o *Orchestrator) delay(ctx context.Context, r *run) bool {
	if o.opts.InterItemDelay <= 0 {
		return true
	}
	timer := time.NewTimer(o.opts.InterItemDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) processOne(ctx context.Context, runID string, item types.Item, generate ContentFunc) types.ItemResult {
	start := o.now()

	fields, trace, err := o.generate(ctx, item, generate)
	var result types.ItemResult
	if err != nil {
		result = types.ItemResult{
			ItemID:         item.ID,
			StepsCompleted: []string{},
			FailedStep:     StepGenerateContent,
			Error:          err.Error(),
			Err:            err,
			StartedAt:      start,
			Duration:       o.now().Sub(start),
		}
	} else {
		result = o.processor.ProcessItem(ctx, item.ID, fields, func(p types.Progress) {
			o.emit(types.NewProgressEvent(runID, p))
		})
		if result.ItemID == "" {
			result.ItemID = item.ID
		}
	}

	recordItem(result.Success, o.now().Sub(start))

	if result.Success {
		o.logf(runID, types.LogSuccess, "item %s updated (%d fields)", item.ID, len(result.FieldsUpdated))
		for _, fe := range result.FieldErrors {
			o.logf(runID, types.LogWarning, "item %s: field %s not written: %s", item.ID, fe.Field, fe.Error)
		}
		return result
	}

	if o.opts.Screenshots && o.diag != nil {
		if path, ok := o.diag.Screenshot("error_" + item.ID); ok {
			result.Screenshot = path
		}
	}
	if trace == "" {
		trace = stepTrail(result)
	}
	cause := result.Err
	if cause == nil {
		cause = errors.New(result.Error)
	}
	o.emit(types.NewErrorEvent(runID, item.ID, cause, trace))
	o.logf(runID, types.LogError, "item %s failed: %s", item.ID, result.Error)
	return result
}

// generate runs the content callback, converting errors and panics into
// ErrCallbackFailed. Items that carry their own fields skip the callback.
func (o *Orchestrator) generate(ctx context.Context, item types.Item, fn ContentFunc) (fields types.Fields, trace string, err error) {
	if fn == nil || len(item.Fields) > 0 {
		return item.Fields, "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			fields = nil
			trace = string(debug.Stack())
			err = fmt.Errorf("%w: panic: %v", ErrCallbackFailed, rec)
		}
	}()
	fields, err = fn(ctx, item)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}
	return fields, "", nil
}

// stepTrail renders the per-step outcome of a failed item.
func stepTrail(r types.ItemResult) string {
	if len(r.Steps) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range r.Steps {
		mark := "ok"
		if !s.Success {
			mark = "FAILED"
		}
		fmt.Fprintf(&b, "%s: %s", s.Name, mark)
		if s.Strategy != "" {
			fmt.Fprintf(&b, " via %s", s.Strategy)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, " (%s)", s.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (o *Orchestrator) setTask(task string) {
	cur := o.snap.Load()
	o.snap.Store(&snapshot{task: task, stats: cur.stats})
}

// record folds a result into the published stats. Only the worker calls it.
func (o *Orchestrator) record(result types.ItemResult) {
	cur := o.snap.Load()
	next := cur.stats.Clone()
	if result.Success {
		next.Processed++
	} else {
		next.Failed++
		next.Errors = append(next.Errors, types.ErrorRecord{ItemID: result.ItemID, Error: result.Error})
	}
	o.snap.Store(&snapshot{task: cur.task, stats: next})
}

func (o *Orchestrator) finish(r *run, total, attempted int) {
	final := o.snap.Load().stats.Clone()
	final.EndTime = o.now()
	final.Stopped = attempted < total
	final.EventsDropped = int(o.dropped.Load())
	o.snap.Store(&snapshot{stats: final})

	recordBatch(final.Stopped)
	o.logf(r.id, types.LogInfo, "batch %s finished: %d processed, %d failed, %d skipped in %s",
		r.id, final.Processed, final.Failed, total-attempted, final.Elapsed().Round(time.Millisecond))
	o.emit(types.NewBatchEndEvent(r.id, final.Clone()))

	prev := State(o.state.Swap(int32(StateIdle)))
	recordState(StateIdle)
	o.emit(types.NewStateChangeEvent(r.id, prev.String(), StateIdle.String()))
	close(r.done)
}

// emit never blocks the worker.
func (o *Orchestrator) emit(e *types.Event) {
	select {
	case o.events <- e:
	default:
		o.dropped.Add(1)
		recordDrop()
	}
}

// logf writes to the component log and mirrors the line as a log event.
func (o *Orchestrator) logf(runID string, level types.LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case types.LogDebug:
		o.logger.Debugf("%s", msg)
	case types.LogWarning:
		o.logger.Warnf("%s", msg)
	case types.LogError:
		o.logger.Errorf("%s", msg)
	default:
		o.logger.Infof("%s", msg)
	}
	o.emit(types.NewLogEvent(runID, level, msg))
}
