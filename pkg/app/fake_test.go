package app

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/types"
	"github.com/entrhq/catalogsync/pkg/workflow"
)

type fakeSession struct {
	mu        sync.Mutex
	alive     bool
	launchErr error
	teardowns int
	shots     []string
}

func (s *fakeSession) Launch() (browser.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.launchErr != nil {
		return browser.SessionInfo{}, s.launchErr
	}
	s.alive = true
	return browser.SessionInfo{ProfileDir: "/tmp/profile", StartedAt: time.Now()}, nil
}

func (s *fakeSession) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSession) Status() browser.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return browser.Status{Running: s.alive, URL: "https://app.test/#catalog"}
}

func (s *fakeSession) Screenshot(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots = append(s.shots, name)
	return "/tmp/" + name + ".png", true
}

func (s *fakeSession) Teardown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	s.teardowns++
	return true
}

// fakeNavigator fails items listed in missing with workflow.ErrNotFound.
// When gate is set each item announces itself on entered and then blocks
// until a value arrives on gate.
type fakeNavigator struct {
	mu       sync.Mutex
	state    workflow.State
	authed   bool
	missing  map[string]bool
	fields   map[string]types.Fields
	landings int

	gate    chan struct{}
	entered chan string
}

func newFakeNavigator(missing ...string) *fakeNavigator {
	n := &fakeNavigator{missing: map[string]bool{}, fields: map[string]types.Fields{}}
	for _, id := range missing {
		n.missing[id] = true
	}
	return n
}

func (n *fakeNavigator) ProcessItem(ctx context.Context, id string, fields types.Fields, onProgress func(types.Progress)) types.ItemResult {
	n.mu.Lock()
	n.fields[id] = fields
	missing := n.missing[id]
	gate := n.gate
	n.mu.Unlock()

	if gate != nil {
		n.entered <- id
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	onProgress(types.Progress{ItemID: id, StepIndex: 1, TotalSteps: workflow.TotalSteps, Description: "search"})

	if missing {
		err := &workflow.StepError{Step: workflow.StepSelectResult, Err: workflow.ErrNotFound}
		return types.ItemResult{
			ItemID:         id,
			StepsCompleted: []string{workflow.StepNavigateCatalog, workflow.StepSearch},
			FailedStep:     workflow.StepSelectResult,
			Error:          err.Error(),
			Err:            err,
		}
	}
	return types.ItemResult{ItemID: id, Success: true, FieldsUpdated: fields.Keys()}
}

func (n *fakeNavigator) gated() *fakeNavigator {
	n.gate = make(chan struct{})
	n.entered = make(chan string, 16)
	return n
}

func (n *fakeNavigator) OpenLanding(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.landings++
	n.state = workflow.StateAwaitingLogin
	return nil
}

func (n *fakeNavigator) CheckAuthenticated(context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.authed {
		n.state = workflow.StateCatalogReady
	}
	return n.authed
}

func (n *fakeNavigator) State() workflow.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *fakeNavigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = workflow.StateUnauthenticated
}

func (n *fakeNavigator) fieldsFor(id string) types.Fields {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fields[id]
}
