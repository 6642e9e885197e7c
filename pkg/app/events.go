package app

import (
	"context"
	"time"

	"github.com/entrhq/catalogsync/pkg/report"
	"github.com/entrhq/catalogsync/pkg/types"
)

// persistTimeout bounds each history write made by the dispatcher.
const persistTimeout = 5 * time.Second

// Subscribe registers a listener for batch events. The returned channel is
// closed when the subscriber falls more than buffer events behind, when
// cancel is called, or on Shutdown.
func (a *App) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.mu.Unlock()

	return ch, func() { a.unsubscribe(id) }
}

func (a *App) unsubscribe(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.subs[id]; ok {
		delete(a.subs, id)
		close(ch)
	}
}

// dispatch drains the orchestrator's events, records them and fans them out.
func (a *App) dispatch() {
	defer close(a.done)
	events := a.orch.Events()
	for {
		select {
		case e := <-events:
			a.handle(e)
		case <-a.ctx.Done():
			for {
				select {
				case e := <-events:
					a.handle(e)
				default:
					a.closeSubscribers()
					return
				}
			}
		}
	}
}

func (a *App) handle(e *types.Event) {
	switch e.Type {
	case types.EventTypeBatchStart:
		a.onBatchStart(e)
	case types.EventTypeItemComplete:
		a.onItemComplete(e)
	case types.EventTypeBatchEnd:
		a.onBatchEnd(e)
	}
	a.broadcast(e)
}

func (a *App) record(runID string) *runRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runs[runID]
}

func (a *App) onBatchStart(e *types.Event) {
	rec := a.record(e.RunID)
	if a.store == nil || rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.CreateRun(ctx, *e.Stats, rec.source, rec.items); err != nil {
		a.logger.Errorf("failed to record run %s: %v", e.RunID, err)
	}
}

func (a *App) onItemComplete(e *types.Event) {
	a.mu.Lock()
	if rec := a.runs[e.RunID]; rec != nil {
		rec.results = append(rec.results, *e.Result)
	}
	a.mu.Unlock()

	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.RecordResult(ctx, e.RunID, *e.Result); err != nil {
		a.logger.Errorf("failed to record result for %s: %v", e.Result.ItemID, err)
	}
}

func (a *App) onBatchEnd(e *types.Event) {
	a.mu.Lock()
	rec := a.runs[e.RunID]
	delete(a.runs, e.RunID)
	a.mu.Unlock()

	source := ""
	var results []types.ItemResult
	if rec != nil {
		source, results = rec.source, rec.results
	}
	summary := report.NewRunSummary(source, *e.Stats, results)

	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := a.store.FinishRun(ctx, *e.Stats); err != nil {
			a.logger.Errorf("failed to finish run %s: %v", e.RunID, err)
		}
		cancel()
	}
	if a.artifacts != nil {
		paths, err := a.artifacts.WriteAll(summary)
		if err != nil {
			a.logger.Errorf("failed to write artifacts for %s: %v", e.RunID, err)
		}
		for _, p := range paths {
			a.logger.Infof("wrote %s", p)
		}
	}

	a.mu.Lock()
	a.last = summary
	a.mu.Unlock()
}

// broadcast delivers e to every subscriber, dropping those that are full.
func (a *App) broadcast(e *types.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.subs {
		select {
		case ch <- e:
		default:
			a.logger.Warnf("dropping slow event subscriber %d", id)
			delete(a.subs, id)
			close(ch)
		}
	}
}

func (a *App) closeSubscribers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}
