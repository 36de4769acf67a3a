package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Handle is a running camera process. Stop must be safe to call from any
// goroutine, any number of times.
type Handle interface {
	Stdout() io.Reader
	Done() <-chan struct{}
	Stop() error
	// Diagnostics returns the tail of the process stderr output.
	Diagnostics() string
}

// Launcher starts camera processes.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (Handle, error)
}

// ExecLauncher starts real processes in their own process group.
type ExecLauncher struct {
	Grace time.Duration
}

// Launch starts binary with args. The returned handle owns the process; the
// caller must Stop it on every exit path.
func (l ExecLauncher) Launch(ctx context.Context, binary string, args []string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: 4 << 10}
	cmd := exec.Command(binary, args...) //nolint:gosec
	cmd.Stdout = writer
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	writer.Close()

	grace := l.Grace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	p := &Process{cmd: cmd, stdout: reader, stderr: stderr, grace: grace, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Process is the scoped handle returned by ExecLauncher.
type Process struct {
	cmd      *exec.Cmd
	stdout   *os.File
	stderr   *tailBuffer
	grace    time.Duration
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
	stopErr  error
}

func (p *Process) Stdout() io.Reader { return p.stdout }

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Diagnostics() string { return p.stderr.String() }

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop sends SIGTERM to the process group, waits up to the grace period, then
// sends SIGKILL. The stdout pipe is closed before returning.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		defer p.stdout.Close()
		select {
		case <-p.done:
			return
		default:
		}
		pgid := p.PID()
		if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			p.stopErr = fmt.Errorf("signal camera process: %w", err)
		}
		select {
		case <-p.done:
			return
		case <-time.After(p.grace):
		}
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			p.stopErr = fmt.Errorf("kill camera process: %w", err)
			return
		}
		<-p.done
	})
	return p.stopErr
}

// ExitErr returns the process wait result once it has exited.
func (p *Process) ExitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(b)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
