// ABOUTME: Local sandbox runtime that previews a file set with the host's package manager and dev server.
// ABOUTME: Each instance gets a temp dir and its own process group, and is killed and removed on reset.
package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/2389-research/vellum/preview"
)

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	localURL   = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\])(?::\d+)?(?:/[^\s]*)?`)
)

// LocalOption configures a Local runtime.
type LocalOption func(*Local)

// WithInstallCommand sets the dependency install command.
func WithInstallCommand(args ...string) LocalOption {
	return func(l *Local) {
		if len(args) > 0 {
			l.installCmd = args
		}
	}
}

// WithDevCommand sets the dev server command. Its output must print the
// server URL.
func WithDevCommand(args ...string) LocalOption {
	return func(l *Local) {
		if len(args) > 0 {
			l.devCmd = args
		}
	}
}

// WithMaxInstances caps concurrently running instances.
func WithMaxInstances(n int) LocalOption {
	return func(l *Local) {
		if n > 0 {
			l.maxInstances = n
		}
	}
}

// WithBaseDir sets where instance directories are created.
func WithBaseDir(dir string) LocalOption {
	return func(l *Local) {
		l.baseDir = dir
	}
}

// WithEnvPolicy sets how the host environment reaches child processes.
func WithEnvPolicy(p EnvPolicy) LocalOption {
	return func(l *Local) {
		l.envPolicy = p
	}
}

// WithLocalLogger sets the logger for process lifecycle messages.
func WithLocalLogger(lg *log.Logger) LocalOption {
	return func(l *Local) {
		l.logger = lg
	}
}

// Local boots previews as child processes on this machine.
type Local struct {
	installCmd   []string
	devCmd       []string
	maxInstances int
	baseDir      string
	envPolicy    EnvPolicy
	logger       *log.Logger
	slots        chan struct{}
}

// NewLocal creates a Local runtime.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		installCmd:   []string{"npm", "install", "--no-audit", "--no-fund"},
		devCmd:       []string{"npm", "run", "dev", "--", "--host", "127.0.0.1"},
		maxInstances: 2,
		envPolicy:    EnvInheritCore,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.slots = make(chan struct{}, l.maxInstances)
	return l
}

// Boot writes files to a fresh directory and starts install and dev server in
// the background. It fails fast when the instance cap is reached.
func (l *Local) Boot(ctx context.Context, files map[string]string) (preview.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case l.slots <- struct{}{}:
	default:
		return nil, fmt.Errorf("unable to create more instances: %d local previews already running", l.maxInstances)
	}

	dir, err := os.MkdirTemp(l.baseDir, "vellum-preview-")
	if err != nil {
		<-l.slots
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	if err := writeFiles(dir, files); err != nil {
		_ = os.RemoveAll(dir)
		<-l.slots
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	inst := &localInstance{
		owner:  l,
		dir:    dir,
		notes:  make(chan preview.Notification, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	l.logger.Printf("component=sandbox.local action=boot dir=%s files=%d", dir, len(files))
	go inst.run(runCtx, preview.NeedsInstall(files))
	return inst, nil
}

type localInstance struct {
	owner   *Local
	dir     string
	notes   chan preview.Notification
	cancel  context.CancelFunc
	done    chan struct{}
	cleanup sync.Once
}

func (i *localInstance) Notifications() <-chan preview.Notification {
	return i.notes
}

// Reset kills the process group, waits for the run loop, and removes the
// instance directory.
func (i *localInstance) Reset(ctx context.Context) error {
	i.cancel()
	var err error
	select {
	case <-i.done:
	case <-ctx.Done():
		err = fmt.Errorf("reset local preview %s: %w", i.dir, ctx.Err())
	}
	i.cleanup.Do(func() {
		if rmErr := os.RemoveAll(i.dir); rmErr != nil && err == nil {
			err = fmt.Errorf("remove preview dir: %w", rmErr)
		}
		<-i.owner.slots
	})
	return err
}

func (i *localInstance) send(ctx context.Context, n preview.Notification) {
	select {
	case i.notes <- n:
	case <-ctx.Done():
	}
}

func (i *localInstance) run(ctx context.Context, install bool) {
	defer close(i.done)
	defer close(i.notes)

	i.send(ctx, preview.Notification{Kind: preview.NotifyReady})
	if install {
		i.send(ctx, preview.Notification{Kind: preview.NotifyInstalling})
		if err := i.runStep(ctx, i.owner.installCmd); err != nil {
			if ctx.Err() == nil {
				i.send(ctx, preview.Notification{Kind: preview.NotifyError, Message: "dependency install failed: " + err.Error()})
			}
			return
		}
		i.send(ctx, preview.Notification{Kind: preview.NotifyInstallComplete})
	}
	i.send(ctx, preview.Notification{Kind: preview.NotifyServerStarting})
	i.serve(ctx)
}

func (i *localInstance) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = i.dir
	cmd.Env = buildEnv(i.owner.envPolicy, os.Environ(), map[string]string{"BROWSER": "none", "CI": "1"})
	// own process group so the whole tree dies on reset
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second
	return cmd
}

func (i *localInstance) runStep(ctx context.Context, args []string) error {
	var out bytes.Buffer
	cmd := i.command(ctx, args)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w\n%s", strings.Join(args, " "), err, lastLines(out.String(), 12))
	}
	return nil
}

// serve runs the dev server and reports the first local URL it prints.
func (i *localInstance) serve(ctx context.Context) {
	pr, pw := io.Pipe()
	cmd := i.command(ctx, i.owner.devCmd)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		i.send(ctx, preview.Notification{Kind: preview.NotifyError, Message: fmt.Sprintf("start dev server: %v", err)})
		return
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	var tail []string
	ready := false
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := ansiEscape.ReplaceAllString(scanner.Text(), "")
		tail = append(tail, line)
		if len(tail) > 12 {
			tail = tail[1:]
		}
		if ready {
			continue
		}
		if url := localURL.FindString(line); url != "" {
			ready = true
			i.owner.logger.Printf("component=sandbox.local action=serving dir=%s url=%s", i.dir, url)
			i.send(ctx, preview.Notification{Kind: preview.NotifyPreviewReady, URL: url})
		}
	}
	_, _ = io.Copy(io.Discard, pr)

	err := <-waitErr
	if ctx.Err() != nil {
		return
	}
	if !ready {
		msg := "dev server exited before serving"
		if err != nil && !errors.Is(err, context.Canceled) {
			msg += ": " + err.Error()
		}
		if len(tail) > 0 {
			msg += "\n" + strings.Join(tail, "\n")
		}
		i.send(ctx, preview.Notification{Kind: preview.NotifyError, Message: msg})
		return
	}
	i.owner.logger.Printf("component=sandbox.local action=exited dir=%s err=%v", i.dir, err)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
