package rpicam

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"blackbox/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithOutputHandler receives every stdout/stderr line the binary prints.
func WithOutputHandler(fn func(string)) Option {
	return func(c *Client) {
		c.onOutput = fn
	}
}

// WithSlack overrides the extra time allowed past the capture duration.
func WithSlack(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.slack = d
		}
	}
}

// CaptureRequest describes a fixed-length capture-to-file session.
type CaptureRequest struct {
	Camera   int
	Width    int
	Height   int
	FPS      int
	Duration time.Duration
	Codec    string
	Quality  int
	Output   string
}

// CaptureResult reports what the session left on disk. Cancelled is set
// when ctx ended the session early but the binary flushed a partial clip.
type CaptureResult struct {
	Path      string
	Size      int64
	Elapsed   time.Duration
	TimedOut  bool
	Cancelled bool
}

// Client wraps rpicam-vid capture sessions.
type Client struct {
	binary   string
	slack    time.Duration
	exec     Executor
	onOutput func(string)
}

// New constructs a capture client. slackSeconds extends the hard timeout past
// the requested capture duration.
func New(binary string, slackSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rpicam binary required")
	}
	client := &Client{
		binary: binary,
		slack:  durationOrDefault(time.Duration(slackSeconds)*time.Second, 10*time.Second),
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// Capture records req.Duration of video into req.Output. The session is
// interrupted once the duration plus slack elapses or ctx is done; either way
// it still succeeds when a non-empty output file exists.
func (c *Client) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if strings.TrimSpace(req.Output) == "" {
		return CaptureResult{}, services.Wrap(services.ErrValidation, "rpicam", "capture", "output path required", nil)
	}
	if req.Duration <= 0 {
		return CaptureResult{}, services.Wrap(services.ErrValidation, "rpicam", "capture", "duration must be positive", nil)
	}

	captureCtx, cancel := context.WithTimeout(ctx, req.Duration+c.slack)
	defer cancel()

	started := time.Now()
	runErr := c.exec.Run(captureCtx, c.binary, captureArgs(req), c.onOutput)
	result := CaptureResult{Path: req.Output, Elapsed: time.Since(started)}

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			if info, err := os.Stat(req.Output); err == nil && info.Size() > 0 {
				result.Size = info.Size()
				result.Cancelled = true
				return result, nil
			}
			return result, services.Wrap(services.ErrTransient, "rpicam", "capture", "cancelled", ctx.Err())
		case errors.Is(captureCtx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
		default:
			return result, services.Wrap(services.ErrExternalTool, "rpicam", "capture", c.binary+" failed", runErr)
		}
	}

	info, err := os.Stat(req.Output)
	if err != nil {
		if result.TimedOut {
			return result, services.Wrap(services.ErrTimeout, "rpicam", "capture", "timed out without output file", err)
		}
		return result, services.Wrap(services.ErrExternalTool, "rpicam", "capture", "produced no output file", err)
	}
	result.Size = info.Size()
	return result, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	// SIGINT lets rpicam-vid flush and close the output container.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
