package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"stagehand/internal/ipc"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 100 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartResult reports whether EnsureStarted had to launch a process.
type StartResult struct {
	Launched bool
	PID      int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `stagehand daemon` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for the IPC socket to accept connections.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	var result StartResult
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return result, err
		}
		if client, err = WaitForClient(socketPath, waitTimeout); err != nil {
			return result, err
		}
		result.Launched = true
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return result, err
	}
	result.PID = status.PID
	return result, nil
}

// Stop sends SIGTERM to the daemon answering on socketPath and waits up to
// gracePeriod for its socket to go away before sending SIGKILL.
func Stop(socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	status, err := client.Status()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}

	result := StopResult{PID: status.PID}
	if result.PID <= 0 || result.PID == os.Getpid() {
		return result, fmt.Errorf("refusing to signal pid %d", result.PID)
	}
	proc, err := os.FindProcess(result.PID)
	if err != nil {
		return result, fmt.Errorf("locate daemon process %d: %w", result.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", result.PID, err)
	}
	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}

	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", result.PID, err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown waits until nothing answers on socketPath.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
		} else {
			_ = client.Close()
		}
		time.Sleep(pollInterval)
	}
	return errors.New("daemon did not stop before timeout")
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
