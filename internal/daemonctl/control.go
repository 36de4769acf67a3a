package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"blackbox/internal/config"
	"blackbox/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Diagnostic bool
}

// StartState describes how a start request was satisfied.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures how the daemon went away. Terminated means the
// process needed SIGTERM after the IPC stop; ForcedKill means it ignored
// SIGTERM too.
type StopResult struct {
	StopAcknowledged bool
	Terminated       bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached blackbox daemon in its own session so it
// survives the invoking shell.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// poll calls check every pollInterval until it reports done or timeout
// elapses. The last error seen is returned on timeout.
func poll(timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := check()
		if done {
			return nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = errors.New("timed out")
	}
	return lastErr
}

// WaitForClient waits for the IPC socket and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := poll(timeout, func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted launches the daemon when its socket is absent and makes sure
// the orchestrator is running.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	launched := false
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = WaitForClient(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status != nil && status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := ""
	if resp != nil {
		message = strings.TrimSpace(resp.Message)
		if resp.Started {
			return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
		}
	}
	if message == "" {
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

// WaitForShutdown waits until the daemon socket disappears or the daemon
// reports that recording has stopped.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	err := poll(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return isDaemonUnavailable(err), err
		}
		status, err := client.Status()
		_ = client.Close()
		if err != nil {
			return false, err
		}
		if status.Running {
			return false, errors.New("daemon still running")
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// ProcessInfo reports whether daemon IPC is reachable and the daemon PID
// when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// StopAndTerminate asks the daemon to stop over IPC. A daemon still
// answering after gracePeriod gets SIGTERM, which runs the normal shutdown
// and releases the cameras, and SIGKILL after another gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var result StopResult
	status, statusErr := client.Status()
	if statusErr != nil {
		status = nil
	}
	lockPath := ""
	if status != nil {
		lockPath = status.LockPath
		result.PID = status.PID
	}
	if lockPath == "" && cfg != nil {
		lockPath = cfg.LockPath()
	}

	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result.StopAcknowledged = resp != nil && resp.Stopped

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, err := ProcessInfo(socketPath)
	if err != nil || !alive {
		return result, nil
	}
	if livePID > 0 {
		result.PID = livePID
	}

	pidFile := pidPath(status, cfg)
	if pidFile == "" {
		return result, errors.New("unable to determine daemon pid file")
	}
	pid, killed, err := TerminateProcess(pidFile, lockPath, result.PID, gracePeriod)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.PID = pid
	result.Terminated = true
	result.ForcedKill = killed
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}
	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// TerminateProcess sends SIGTERM to the daemon named by pidFile (or
// fallbackPID), waits up to grace and then sends SIGKILL. Stale pid and
// lock files are removed. killed reports whether SIGKILL was needed.
func TerminateProcess(pidFile, lockPath string, fallbackPID int, grace time.Duration) (pid int, killed bool, err error) {
	pid, err = readPID(pidFile, fallbackPID)
	if err != nil {
		return 0, false, err
	}
	if pid == os.Getpid() {
		return 0, false, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return 0, false, fmt.Errorf("terminate daemon process %d: %w", pid, err)
	}
	if poll(grace, func() (bool, error) { return !processAlive(pid), nil }) != nil {
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return 0, false, fmt.Errorf("kill daemon process %d: %w", pid, err)
		}
		killed = true
	}

	if err := os.Remove(pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pid, killed, fmt.Errorf("remove pid file %q: %w", pidFile, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, killed, nil
}

func readPID(pidFile string, fallback int) (int, error) {
	data, err := os.ReadFile(pidFile)
	switch {
	case err == nil:
		if parsed, perr := strconv.Atoi(strings.TrimSpace(string(data))); perr == nil && parsed > 0 {
			return parsed, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidFile, err)
	}
	if fallback > 0 {
		return fallback, nil
	}
	return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidFile)
}

// processAlive probes pid with signal 0. EPERM still means the process
// exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// pidPath resolves the daemon pid file, preferring the path the daemon
// reported over the local config.
func pidPath(status *ipc.StatusResponse, cfg *config.Config) string {
	if status != nil && strings.TrimSpace(status.LogPath) != "" {
		return filepath.Join(filepath.Dir(status.LogPath), "blackbox.pid")
	}
	if cfg != nil {
		return cfg.PIDPath()
	}
	return ""
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, ipc.ErrDaemonUnavailable)
}
