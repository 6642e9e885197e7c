package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/catalogsync/pkg/types"
	"github.com/entrhq/catalogsync/pkg/workflow"
)

var allSteps = []string{"navigate_catalog", "search", "select_result", "open_editor_tab", "open_editor", "update_fields", "save"}

// fakeProcessor stands in for the workflow navigator. When gated, each call
// announces its item on started and then waits for a value on release.
type fakeProcessor struct {
	mu       sync.Mutex
	calls    []string
	fields   map[string]types.Fields
	failures map[string]error

	started chan string
	release chan struct{}
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		fields:   map[string]types.Fields{},
		failures: map[string]error{},
	}
}

func newGatedProcessor() *fakeProcessor {
	p := newFakeProcessor()
	p.started = make(chan string)
	p.release = make(chan struct{})
	return p
}

func (p *fakeProcessor) ProcessItem(ctx context.Context, id string, fields types.Fields, onProgress func(types.Progress)) types.ItemResult {
	p.mu.Lock()
	p.calls = append(p.calls, id)
	p.fields[id] = fields
	err := p.failures[id]
	p.mu.Unlock()

	if p.started != nil {
		p.started <- id
		<-p.release
	}

	onProgress(types.Progress{ItemID: id, StepIndex: 1, TotalSteps: len(allSteps), Description: "Opening catalog"})

	if err != nil {
		return types.ItemResult{
			ItemID:         id,
			StepsCompleted: allSteps[:2],
			Steps: []types.StepResult{
				{Name: allSteps[0], Success: true},
				{Name: allSteps[1], Success: true},
				{Name: allSteps[2], Error: err.Error()},
			},
			FailedStep: allSteps[2],
			Error:      err.Error(),
			Err:        &workflow.StepError{Step: allSteps[2], Err: err},
		}
	}
	return types.ItemResult{ItemID: id, Success: true, StepsCompleted: allSteps}
}

func (p *fakeProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeDiagnostics struct {
	mu    sync.Mutex
	names []string
}

func (d *fakeDiagnostics) Screenshot(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = append(d.names, name)
	return "/tmp/" + name + ".png", true
}

func testOptions() Options {
	return Options{
		PausePoll:   5 * time.Millisecond,
		StopTimeout: 2 * time.Second,
		EventBuffer: 512,
		Screenshots: true,
	}
}

func items(ids ...string) []types.Item {
	out := make([]types.Item, len(ids))
	for i, id := range ids {
		out[i] = types.Item{ID: id, Name: "Item " + id}
	}
	return out
}

func staticContent(_ context.Context, item types.Item) (types.Fields, error) {
	return types.Fields{"description": "about " + item.ID}, nil
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Wait(ctx); err != nil {
		t.Fatalf("batch did not finish: %v", err)
	}
}

func drain(ch <-chan *types.Event) []*types.Event {
	var out []*types.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func completed(events []*types.Event) []types.ItemResult {
	var out []types.ItemResult
	for _, e := range events {
		if e.Type == types.EventTypeItemComplete {
			out = append(out, *e.Result)
		}
	}
	return out
}

func ofType(events []*types.Event, t types.EventType) []*types.Event {
	var out []*types.Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
