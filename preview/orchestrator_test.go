// ABOUTME: Tests for the preview orchestrator using a scripted fake sandbox runtime.
// ABOUTME: Covers phase mapping, synthesized phases, failure classification, supersession, and teardown.
package preview

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeInstance struct {
	notes    chan Notification
	resets   atomic.Int32
	resetErr error
	resetted chan struct{}
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{notes: make(chan Notification, 16), resetted: make(chan struct{}, 1)}
}

func (f *fakeInstance) Notifications() <-chan Notification { return f.notes }

func (f *fakeInstance) Reset(ctx context.Context) error {
	f.resets.Add(1)
	select {
	case f.resetted <- struct{}{}:
	default:
	}
	return f.resetErr
}

type fakeRuntime struct {
	booted   chan *fakeInstance
	bootErr  error
	resetErr error
	boots    atomic.Int32
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{booted: make(chan *fakeInstance, 8)}
}

func (r *fakeRuntime) Boot(ctx context.Context, files map[string]string) (Instance, error) {
	r.boots.Add(1)
	if r.bootErr != nil {
		return nil, r.bootErr
	}
	inst := newFakeInstance()
	inst.resetErr = r.resetErr
	r.booted <- inst
	return inst, nil
}

func (r *fakeRuntime) next(t *testing.T) *fakeInstance {
	t.Helper()
	select {
	case inst := <-r.booted:
		return inst
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for boot")
		return nil
	}
}

var quiet = log.New(io.Discard, "", 0)

const depManifest = `{"dependencies": {"react": "^18.0.0"}}`

func installFiles() map[string]string {
	return map[string]string{"package.json": depManifest, "index.html": "<p>hi</p>"}
}

func plainFiles() map[string]string {
	return map[string]string{"index.html": "<p>hi</p>"}
}

// collect reads events until stop returns true or the channel closes.
func collect(t *testing.T, sub *Subscription, stop func(Event) bool) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, ev)
			if stop != nil && stop(ev) {
				return out
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", phases(out))
			return out
		}
	}
}

func terminal(ev Event) bool { return ev.Status.Phase.Terminal() }

func phases(evs []Event) []Phase {
	out := make([]Phase, len(evs))
	for i, ev := range evs {
		out[i] = ev.Status.Phase
	}
	return out
}

func assertPhases(t *testing.T, got []Event, want ...Phase) {
	t.Helper()
	g := phases(got)
	if len(g) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected phases %v, got %v", want, g)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(installFiles())
	sub := s.Subscribe()
	defer sub.Close()

	inst := rt.next(t)
	inst.notes <- Notification{Kind: NotifyReady}
	inst.notes <- Notification{Kind: NotifyInstalling}
	inst.notes <- Notification{Kind: NotifyInstallComplete}
	inst.notes <- Notification{Kind: NotifyServerStarting}
	inst.notes <- Notification{Kind: NotifyPreviewReady, URL: "http://localhost:5173"}

	evs := collect(t, sub, terminal)
	assertPhases(t, evs, PhasePreparing, PhaseInstallingDependencies, PhaseStartingServer, PhaseReady)
	if evs[3].Status.URL != "http://localhost:5173" {
		t.Errorf("expected ready url, got %q", evs[3].Status.URL)
	}
	for i, ev := range evs {
		if ev.SessionID != s.ID() || ev.Seq != i+1 {
			t.Errorf("event %d: expected session %s seq %d, got %s seq %d", i, s.ID(), i+1, ev.SessionID, ev.Seq)
		}
	}
}

func TestEarlyReadySynthesizesInstallWhenRequired(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(installFiles())
	sub := s.Subscribe()
	defer sub.Close()

	rt.next(t).notes <- Notification{Kind: NotifyPreviewReady, URL: "http://x"}
	assertPhases(t, collect(t, sub, terminal),
		PhasePreparing, PhaseInstallingDependencies, PhaseStartingServer, PhaseReady)
}

func TestEarlyReadySkipsInstallWhenNotRequired(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(plainFiles())
	sub := s.Subscribe()
	defer sub.Close()

	if s.NeedsInstall() {
		t.Fatal("expected plain file set to need no install")
	}
	rt.next(t).notes <- Notification{Kind: NotifyPreviewReady, URL: "http://x"}
	assertPhases(t, collect(t, sub, terminal), PhasePreparing, PhaseStartingServer, PhaseReady)
}

func TestBackwardNotificationsAreDropped(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(installFiles())
	sub := s.Subscribe()
	defer sub.Close()

	inst := rt.next(t)
	inst.notes <- Notification{Kind: NotifyServerStarting}
	inst.notes <- Notification{Kind: NotifyInstalling}
	inst.notes <- Notification{Kind: NotifyPreviewReady, URL: "http://x"}
	inst.notes <- Notification{Kind: NotifyError, Message: "late"}

	assertPhases(t, collect(t, sub, terminal),
		PhasePreparing, PhaseInstallingDependencies, PhaseStartingServer, PhaseReady)
	time.Sleep(50 * time.Millisecond)
	if got := s.Status().Phase; got != PhaseReady {
		t.Errorf("expected ready to be terminal, got %s", got)
	}
}

func TestIsolationErrorIsClassifiedAndTornDown(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(plainFiles())
	sub := s.Subscribe()
	defer sub.Close()

	inst := rt.next(t)
	inst.notes <- Notification{Kind: NotifyError, Message: "crossOriginIsolated is not enabled"}
	inst.notes <- Notification{Kind: NotifyError, Message: "second"}

	evs := collect(t, sub, nil)
	assertPhases(t, evs, PhasePreparing, PhaseFailed)
	f := evs[1].Status.Failure
	if f == nil || f.Reason != ReasonCrossOriginIsolation {
		t.Fatalf("expected cross-origin isolation failure, got %+v", f)
	}
	if !f.StaticFallback() || f.Retryable() {
		t.Errorf("expected static fallback without retry, got fallback=%v retry=%v", f.StaticFallback(), f.Retryable())
	}
	<-s.Done()
	if inst.resets.Load() != 1 {
		t.Errorf("expected one reset, got %d", inst.resets.Load())
	}
}

func TestClosedNotificationsFailGeneric(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(plainFiles())
	sub := s.Subscribe()
	defer sub.Close()

	close(rt.next(t).notes)
	evs := collect(t, sub, nil)
	assertPhases(t, evs, PhasePreparing, PhaseFailed)
	if evs[1].Status.Failure.Reason != ReasonGeneric {
		t.Errorf("expected generic failure, got %s", evs[1].Status.Failure.Reason)
	}
}

func TestBootErrorInstanceLimit(t *testing.T) {
	rt := newFakeRuntime()
	rt.bootErr = errors.New("Unable to create more instances")
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(plainFiles())
	sub := s.Subscribe()
	defer sub.Close()

	evs := collect(t, sub, nil)
	assertPhases(t, evs, PhasePreparing, PhaseFailed)
	f := evs[1].Status.Failure
	if f.Reason != ReasonInstanceLimit || !f.Retryable() {
		t.Errorf("expected retryable instance limit failure, got %+v", f)
	}
}

func TestSupersededSessionEmitsNothing(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	all := o.Subscribe()
	defer all.Close()

	s1 := o.Start(plainFiles())
	first := rt.next(t)
	s2 := o.Start(plainFiles())

	select {
	case <-s1.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected superseded session to finish")
	}
	if first.resets.Load() != 1 {
		t.Errorf("expected superseded instance reset once, got %d", first.resets.Load())
	}
	// late signals from the old instance must not surface
	select {
	case first.notes <- Notification{Kind: NotifyPreviewReady, URL: "http://old"}:
	default:
	}

	second := rt.next(t)
	second.notes <- Notification{Kind: NotifyPreviewReady, URL: "http://new"}

	evs := collect(t, all, func(ev Event) bool { return ev.SessionID == s2.ID() && terminal(ev) })
	for _, ev := range evs {
		if ev.SessionID == s1.ID() && ev.Status.Phase == PhaseReady {
			t.Fatalf("expected no ready event from superseded session, got %+v", ev)
		}
	}
	if got := s1.Status().Phase; got == PhaseReady || got == PhaseFailed {
		t.Errorf("expected superseded session to stay non-terminal, got %s", got)
	}
	if last := evs[len(evs)-1]; last.Status.URL != "http://new" {
		t.Errorf("expected new session ready, got %+v", last)
	}
}

func TestSessionSubscriptionClosesWhenSuperseded(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s1 := o.Start(plainFiles())
	sub := s1.Subscribe()
	rt.next(t)
	o.Start(plainFiles())

	evs := collect(t, sub, nil)
	assertPhases(t, evs, PhasePreparing)
}

func TestFailingTeardownDoesNotBlockNewSession(t *testing.T) {
	rt := newFakeRuntime()
	rt.resetErr = errors.New("reset exploded")
	o := New(rt, WithLogger(quiet), WithoutScaffold(), WithTeardownTimeout(200*time.Millisecond))
	o.Start(plainFiles())
	rt.next(t)

	s2 := o.Start(plainFiles())
	sub := s2.Subscribe()
	defer sub.Close()
	rt.next(t).notes <- Notification{Kind: NotifyPreviewReady, URL: "http://ok"}

	evs := collect(t, sub, terminal)
	if evs[len(evs)-1].Status.Phase != PhaseReady {
		t.Errorf("expected new session ready despite failed teardown, got %v", phases(evs))
	}
}

func TestRetryStartsFreshSession(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	if _, err := o.Retry(); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}

	s1 := o.Start(plainFiles())
	rt.next(t).notes <- Notification{Kind: NotifyError, Message: "boom"}
	<-s1.Done()

	s2, err := o.Retry()
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s2.ID() == s1.ID() {
		t.Error("expected a new session id")
	}
	if s2.Status().Phase != PhasePreparing {
		t.Errorf("expected retry to begin at preparing, got %s", s2.Status().Phase)
	}
	if got := s2.Files()["index.html"]; got != "<p>hi</p>" {
		t.Errorf("expected same files, got %q", got)
	}
	rt.next(t)
}

func TestReadyTimeout(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold(), WithReadyTimeout(50*time.Millisecond))
	s := o.Start(plainFiles())
	sub := s.Subscribe()
	defer sub.Close()
	inst := rt.next(t)

	evs := collect(t, sub, nil)
	assertPhases(t, evs, PhasePreparing, PhaseFailed)
	if !strings.Contains(evs[1].Status.Failure.Message, "did not become ready") {
		t.Errorf("unexpected timeout message %q", evs[1].Status.Failure.Message)
	}
	<-s.Done()
	if inst.resets.Load() != 1 {
		t.Errorf("expected reset after timeout, got %d", inst.resets.Load())
	}
}

func TestStopTearsDownAndGoesIdle(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	all := o.Subscribe()
	defer all.Close()

	o.Start(plainFiles())
	inst := rt.next(t)
	inst.notes <- Notification{Kind: NotifyPreviewReady, URL: "http://x"}
	collect(t, all, terminal)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if inst.resets.Load() != 1 {
		t.Errorf("expected reset on stop, got %d", inst.resets.Load())
	}
	if id, st := o.Status(); id != "" || st.Phase != PhaseIdle {
		t.Errorf("expected idle, got %s %s", id, st.Phase)
	}
	evs := collect(t, all, func(ev Event) bool { return ev.Status.Phase == PhaseIdle })
	if evs[len(evs)-1].Status.Phase != PhaseIdle {
		t.Errorf("expected idle event, got %v", phases(evs))
	}
	if _, err := o.Retry(); !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles after stop, got %v", err)
	}
}

func TestLateSubscriberGetsHistory(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet), WithoutScaffold())
	s := o.Start(plainFiles())
	rt.next(t).notes <- Notification{Kind: NotifyError, Message: "nope"}
	<-s.Done()

	evs := collect(t, s.Subscribe(), nil)
	assertPhases(t, evs, PhasePreparing, PhaseFailed)
}

func TestStartScaffoldsByDefault(t *testing.T) {
	rt := newFakeRuntime()
	o := New(rt, WithLogger(quiet))
	s := o.Start(map[string]string{"src/App.jsx": "export default () => null"})
	rt.next(t)
	files := s.Files()
	for _, p := range []string{"package.json", "vite.config.js", "index.html", "src/main.jsx"} {
		if _, ok := files[p]; !ok {
			t.Errorf("expected scaffolded %s", p)
		}
	}
	if !s.NeedsInstall() {
		t.Error("expected scaffolded react set to need install")
	}
}
