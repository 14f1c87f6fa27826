package latch

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ProcessManager abstracts process termination so the latch's kill
// sequence is testable without spawning real processes.
type ProcessManager interface {
	IsAlive(pid int) bool
	// Terminate sends SIGTERM and escalates to SIGKILL if the process
	// does not exit. An already-dead process is not an error.
	Terminate(pid int) error
	// TerminateByName best-effort kills processes matching name.
	TerminateByName(name string) error
}

// OSProcessManager signals real processes. Liveness is probed with
// signal 0, which checks existence without delivering anything.
type OSProcessManager struct {
	logger        *slog.Logger
	escalateAfter time.Duration
}

func NewOSProcessManager(logger *slog.Logger) *OSProcessManager {
	return &OSProcessManager{
		logger:        logger,
		escalateAfter: 5 * time.Second,
	}
}

func (m *OSProcessManager) IsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (m *OSProcessManager) Terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// Poll for exit with exponential backoff, then escalate.
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = m.escalateAfter

	waitErr := backoff.Retry(func() error {
		if m.IsAlive(pid) {
			return errors.New("still running")
		}
		return nil
	}, policy)

	if waitErr == nil {
		return nil
	}

	m.logger.Warn("Process ignored SIGTERM, escalating to SIGKILL",
		slog.Int("pid", pid))

	if err := proc.Signal(syscall.SIGKILL); err != nil &&
		!errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func (m *OSProcessManager) TerminateByName(name string) error {
	// pkill exits 1 when nothing matched, which is fine here.
	err := exec.Command("pkill", "-f", name).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return nil
	}
	return err
}
