package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
)

const (
	// DefaultStderrLimit bounds the captured stderr tail
	DefaultStderrLimit = 8 * 1024

	// DefaultGracePeriod is how long Close waits for the child to exit on
	// its own after stdin is closed
	DefaultGracePeriod = 500 * time.Millisecond
)

// SubprocessConfig describes the child to spawn
type SubprocessConfig struct {
	Command string
	Args    []string
	// Env is added on top of the parent environment
	Env map[string]string
	Dir string

	// Stderr, if set, also receives the child's stderr
	Stderr      io.Writer
	StderrLimit int
	GracePeriod time.Duration
}

// ProcessError reports a child that exited while the stream was in use
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("process exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap reports io.EOF alongside the wait error so callers can treat a
// dead child like a closed stream
func (e *ProcessError) Unwrap() []error {
	if e.Err == nil {
		return []error{io.EOF}
	}
	return []error{io.EOF, e.Err}
}

// Subprocess is a Transport over a spawned child's stdin and stdout
type Subprocess struct {
	*Stream

	cmd    *exec.Cmd
	stderr *tailBuffer
	grace  time.Duration

	waitCh  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// StartSubprocess spawns cfg.Command. The child lives until Close; ctx only
// bounds the start itself.
func StartSubprocess(ctx context.Context, cfg SubprocessConfig) (*Subprocess, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("subprocess command is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := cfg.StderrLimit
	if limit <= 0 {
		limit = DefaultStderrLimit
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), flattenEnv(cfg.Env)...)

	stderr := newTailBuffer(limit)
	if cfg.Stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, cfg.Stderr)
	} else {
		cmd.Stderr = stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// A plain pipe instead of StdoutPipe: Wait must not close the read end
	// while frames are still buffered.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}
	_ = stdoutW.Close()

	p := &Subprocess{
		Stream: NewStream(stdoutR, stdin, multiCloser{stdin, stdoutR}),
		cmd:    cmd,
		stderr: stderr,
		grace:  grace,
		waitCh: make(chan struct{}),
	}
	go p.waitLoop()

	return p, nil
}

func (p *Subprocess) waitLoop() {
	p.waitErr = p.cmd.Wait()
	close(p.waitCh)
}

// Receive returns the next message. When the child's stdout ends the error
// is a *ProcessError carrying the exit code and stderr tail.
func (p *Subprocess) Receive(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := p.Stream.Receive(ctx)
	if errors.Is(err, io.EOF) {
		return msg, p.exitError(ctx)
	}
	return msg, err
}

func (p *Subprocess) exitError(ctx context.Context) error {
	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-p.waitCh:
		return &ProcessError{
			ExitCode: p.cmd.ProcessState.ExitCode(),
			Stderr:   p.Stderr(),
			Err:      p.waitErr,
		}
	case <-timer.C:
	case <-ctx.Done():
	}
	// stdout closed but the process is still around
	return &ProcessError{ExitCode: -1, Stderr: p.Stderr()}
}

// Stderr returns the captured tail of the child's stderr
func (p *Subprocess) Stderr() string {
	return strings.TrimSpace(p.stderr.String())
}

// Exited is closed once the child has been reaped
func (p *Subprocess) Exited() <-chan struct{} {
	return p.waitCh
}

// Close closes stdin, gives the child a grace period to exit, then kills it
// and waits. Safe to call more than once.
func (p *Subprocess) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.closeErr = p.Stream.Close(ctx)

		timer := time.NewTimer(p.grace)
		defer timer.Stop()

		select {
		case <-p.waitCh:
			return
		case <-timer.C:
		case <-ctx.Done():
		}

		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		select {
		case <-p.waitCh:
		case <-ctx.Done():
			if p.closeErr == nil {
				p.closeErr = ctx.Err()
			}
		}
	})
	return p.closeErr
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
