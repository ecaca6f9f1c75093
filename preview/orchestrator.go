// ABOUTME: PreviewOrchestrator driving one live sandbox session through its startup lifecycle.
// ABOUTME: Serializes session replacement, suppresses stale events, and always tears instances down.
package preview

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNoFiles is returned by Retry before any session was started.
var ErrNoFiles = errors.New("no file set to preview")

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithReadyTimeout fails a session that is not ready within d. Zero disables it.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.readyTimeout = d
	}
}

// WithTeardownTimeout bounds how long a new session waits for the previous
// one to tear down, and how long a single Reset may take.
func WithTeardownTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.teardownTimeout = d
		}
	}
}

// WithoutScaffold boots file sets exactly as given.
func WithoutScaffold() Option {
	return func(o *Orchestrator) {
		o.scaffold = false
	}
}

// Orchestrator owns at most one live preview session.
type Orchestrator struct {
	rt              Runtime
	logger          *log.Logger
	readyTimeout    time.Duration
	teardownTimeout time.Duration
	scaffold        bool

	mu        sync.Mutex
	current   *Session
	lastFiles map[string]string
	subs      []*Subscription
}

// New creates an Orchestrator over a sandbox runtime.
func New(rt Runtime, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rt:              rt,
		logger:          log.Default(),
		teardownTimeout: 10 * time.Second,
		scaffold:        true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session is one attempt at booting a preview. Its status only moves forward.
type Session struct {
	id           string
	files        map[string]string
	needsInstall bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  Status
	seq     int
	history []Event
	subs    []*Subscription
	ended   bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the latest status of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Files returns the file set booted by the session, including scaffolding.
func (s *Session) Files() map[string]string {
	out := make(map[string]string, len(s.files))
	for p, c := range s.files {
		out[p] = c
	}
	return out
}

// NeedsInstall reports whether the session expects a dependency install.
func (s *Session) NeedsInstall() bool { return s.needsInstall }

// Done is closed after the session has ended and its instance was torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Subscribe returns this session's events, starting with those already
// emitted. The subscription closes once the session ends or is superseded.
func (s *Session) Subscribe() *Subscription {
	sub := newSubscription(nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.history {
		sub.push(ev)
	}
	if s.ended {
		sub.finish()
		return sub
	}
	s.subs = append(s.subs, sub)
	sub.detach = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, x := range s.subs {
			if x == sub {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
	return sub
}

// end closes every session subscription after its queued events drain.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	for _, sub := range s.subs {
		sub.finish()
	}
	s.subs = nil
}

// Subscribe returns events of whichever session is live when each event is
// delivered. Events of a superseded session are dropped.
func (o *Orchestrator) Subscribe() *Subscription {
	sub := newSubscription(func(ev Event) bool {
		return ev.SessionID == o.currentID()
	})
	o.mu.Lock()
	o.subs = append(o.subs, sub)
	o.mu.Unlock()
	sub.detach = func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, x := range o.subs {
			if x == sub {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				return
			}
		}
	}
	return sub
}

func (o *Orchestrator) currentID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return ""
	}
	return o.current.id
}

// Current returns the live session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Status returns the live session's status, or Idle.
func (o *Orchestrator) Status() (string, Status) {
	s := o.Current()
	if s == nil {
		return "", Status{Phase: PhaseIdle}
	}
	return s.id, s.Status()
}

// Start replaces the live session with a new one for files and returns it
// immediately. The previous session is torn down before the new one boots.
func (o *Orchestrator) Start(files map[string]string) *Session {
	var boot map[string]string
	if o.scaffold {
		boot = Scaffold(files)
	} else {
		boot = copyFiles(files)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           ulid.MustNew(ulid.Now(), rand.Reader).String(),
		files:        boot,
		needsInstall: NeedsInstall(boot),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		status:       Status{Phase: PhaseIdle},
	}

	o.mu.Lock()
	prev := o.current
	o.current = s
	o.lastFiles = copyFiles(files)
	o.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	o.logger.Printf("component=preview action=start session=%s files=%d needs_install=%t", s.id, len(boot), s.needsInstall)
	o.emit(s, Status{Phase: PhasePreparing})

	go o.run(prev, s)
	return s
}

// Retry starts a brand-new session with the file set of the last Start.
func (o *Orchestrator) Retry() (*Session, error) {
	o.mu.Lock()
	files := o.lastFiles
	o.mu.Unlock()
	if files == nil {
		return nil, ErrNoFiles
	}
	return o.Start(files), nil
}

// Stop tears down the live session and returns the orchestrator to Idle. It
// waits for teardown until ctx is done.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	s := o.current
	o.current = nil
	o.lastFiles = nil
	subs := append([]*Subscription(nil), o.subs...)
	o.mu.Unlock()

	if s == nil {
		return nil
	}
	s.cancel()

	idle := Event{Status: Status{Phase: PhaseIdle}, At: time.Now()}
	for _, sub := range subs {
		sub.push(idle)
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop preview session %s: %w", s.id, ctx.Err())
	}
}

// emit records and publishes a status for s, unless s has been superseded.
func (o *Orchestrator) emit(s *Session, st Status) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s {
		return false
	}

	s.mu.Lock()
	s.seq++
	s.status = st
	ev := Event{SessionID: s.id, Seq: s.seq, Status: st, At: time.Now()}
	s.history = append(s.history, ev)
	for _, sub := range s.subs {
		sub.push(ev)
	}
	s.mu.Unlock()

	for _, sub := range o.subs {
		sub.push(ev)
	}
	return true
}

// advance moves s toward target, synthesizing skipped intermediate phases.
// Backward moves and anything after a terminal phase are dropped.
func (o *Orchestrator) advance(s *Session, target Status) {
	cur := s.Status()
	if cur.Phase.Terminal() {
		o.logger.Printf("component=preview action=ignored session=%s phase=%s reason=terminal", s.id, target.Phase)
		return
	}
	if target.Phase == PhaseFailed {
		o.emit(s, target)
		return
	}
	if target.Phase.rank() <= cur.Phase.rank() {
		o.logger.Printf("component=preview action=ignored session=%s phase=%s current=%s reason=backward", s.id, target.Phase, cur.Phase)
		return
	}
	for _, p := range []Phase{PhaseInstallingDependencies, PhaseStartingServer} {
		if p.rank() <= cur.Phase.rank() || p.rank() >= target.Phase.rank() {
			continue
		}
		if p == PhaseInstallingDependencies && !s.needsInstall {
			continue
		}
		if !o.emit(s, Status{Phase: p}) {
			return
		}
	}
	o.emit(s, target)
}

func (o *Orchestrator) fail(s *Session, message string) {
	f := Classify(message)
	o.logger.Printf("component=preview action=failed session=%s reason=%s message=%q", s.id, f.Reason, f.Message)
	o.advance(s, Status{Phase: PhaseFailed, Failure: f})
}

// run drives one session: wait for the previous teardown, boot, map
// notifications, and reset the instance on the way out.
func (o *Orchestrator) run(prev *Session, s *Session) {
	defer close(s.done)
	defer s.end()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("component=preview action=recovered session=%s panic=%v", s.id, r)
			o.fail(s, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if prev != nil {
		select {
		case <-prev.done:
		case <-time.After(o.teardownTimeout):
			o.logger.Printf("component=preview action=teardown_timeout session=%s timeout=%s", prev.id, o.teardownTimeout)
		}
	}
	if s.ctx.Err() != nil {
		return
	}

	inst, err := o.rt.Boot(s.ctx, s.files)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		o.fail(s, err.Error())
		return
	}
	defer o.teardown(s, inst)

	var timeout <-chan time.Time
	if o.readyTimeout > 0 {
		timer := time.NewTimer(o.readyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	notes := inst.Notifications()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timeout:
			if !s.Status().Phase.Terminal() {
				o.fail(s, fmt.Sprintf("preview did not become ready within %s", o.readyTimeout))
				return
			}
			timeout = nil
		case n, ok := <-notes:
			if !ok {
				if !s.Status().Phase.Terminal() {
					o.fail(s, "sandbox stopped before the preview was ready")
					return
				}
				// ready and the runtime went quiet; hold the instance until superseded
				notes = nil
				continue
			}
			o.handle(s, n)
			if s.Status().Phase == PhaseFailed {
				return
			}
		}
	}
}

func (o *Orchestrator) handle(s *Session, n Notification) {
	switch n.Kind {
	case NotifyReady, NotifyInstallComplete:
		// no phase change
	case NotifyInstalling:
		o.advance(s, Status{Phase: PhaseInstallingDependencies})
	case NotifyServerStarting:
		o.advance(s, Status{Phase: PhaseStartingServer})
	case NotifyPreviewReady:
		o.logger.Printf("component=preview action=ready session=%s url=%s", s.id, n.URL)
		o.advance(s, Status{Phase: PhaseReady, URL: n.URL})
	case NotifyError:
		o.fail(s, n.Message)
	default:
		o.logger.Printf("component=preview action=ignored session=%s kind=%q reason=unknown", s.id, n.Kind)
	}
}

// teardown resets the instance with a bounded context. Failures are logged and
// never block the next session beyond the timeout.
func (o *Orchestrator) teardown(s *Session, inst Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), o.teardownTimeout)
	defer cancel()
	if err := inst.Reset(ctx); err != nil {
		o.logger.Printf("component=preview action=teardown_failed session=%s err=%v", s.id, err)
		return
	}
	o.logger.Printf("component=preview action=teardown session=%s", s.id)
}

func copyFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for p, c := range files {
		out[p] = c
	}
	return out
}
