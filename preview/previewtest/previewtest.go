// ABOUTME: Scripted preview runtime for tests of packages built on the preview orchestrator.
// ABOUTME: Each boot replays a fixed notification script and holds the instance until reset.
package previewtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389-research/vellum/preview"
)

// Runtime boots scripted instances. The zero value boots instances that
// become ready at http://preview.test/<n>.
type Runtime struct {
	// Script overrides the notifications sent after boot.
	Script []preview.Notification
	// BootErr makes every boot fail.
	BootErr error

	mu     sync.Mutex
	boots  int
	resets int
	last   map[string]string
}

// Boot starts an instance for files.
func (r *Runtime) Boot(ctx context.Context, files map[string]string) (preview.Instance, error) {
	r.mu.Lock()
	r.boots++
	n := r.boots
	r.last = files
	bootErr := r.BootErr
	script := r.Script
	r.mu.Unlock()

	if bootErr != nil {
		return nil, bootErr
	}
	if script == nil {
		script = []preview.Notification{
			{Kind: preview.NotifyReady},
			{Kind: preview.NotifyServerStarting},
			{Kind: preview.NotifyPreviewReady, URL: fmt.Sprintf("http://preview.test/%d", n)},
		}
	}
	inst := &instance{owner: r, notes: make(chan preview.Notification, len(script))}
	for _, note := range script {
		inst.notes <- note
	}
	return inst, nil
}

// Boots returns how many boots were attempted.
func (r *Runtime) Boots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boots
}

// Resets returns how many instances were reset.
func (r *Runtime) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// LastFiles returns the file set of the most recent boot.
func (r *Runtime) LastFiles() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

type instance struct {
	owner *Runtime
	notes chan preview.Notification
	once  sync.Once
}

func (i *instance) Notifications() <-chan preview.Notification { return i.notes }

func (i *instance) Reset(ctx context.Context) error {
	i.once.Do(func() {
		i.owner.mu.Lock()
		i.owner.resets++
		i.owner.mu.Unlock()
	})
	return nil
}

// ErrTimeout is returned by WaitPhase when the phase is not reached in time.
var ErrTimeout = errors.New("timed out waiting for preview phase")

// WaitPhase blocks until s reaches phase or its terminal state.
func WaitPhase(s *preview.Session, phase preview.Phase, timeout time.Duration) (preview.Status, error) {
	sub := s.Subscribe()
	defer sub.Close()
	deadline := time.After(timeout)
	var last preview.Status
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return last, fmt.Errorf("session ended in %s: %w", last.Phase, ErrTimeout)
			}
			last = ev.Status
			if ev.Status.Phase == phase {
				return ev.Status, nil
			}
			if ev.Status.Phase.Terminal() {
				return ev.Status, fmt.Errorf("session reached %s instead of %s", ev.Status.Phase, phase)
			}
		case <-deadline:
			return last, ErrTimeout
		}
	}
}
