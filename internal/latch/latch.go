package latch

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	lockFileName  = "shutdown.lock"
	pidFileName   = "service_pids.json"
	auditFileName = "audit.log"
)

// ExitCodeBlocked is the process exit status reserved for a startup
// blocked by an engaged latch. It matches the POSIX "killed by SIGKILL"
// convention so supervisors do not auto-restart the host.
const ExitCodeBlocked = 137

// LockRecord is the durable artifact whose presence means the latch is
// engaged.
type LockRecord struct {
	Timestamp   string `json:"timestamp"`
	Reason      string `json:"reason"`
	TriggeredBy string `json:"triggered_by"`
}

type auditEntry struct {
	Event       string `json:"event"`
	Timestamp   string `json:"timestamp"`
	Reason      string `json:"reason,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// Latch is the emergency shutdown interlock. Engaging it persists a lock
// artifact that survives restarts and terminates every tracked service
// process. It stays engaged until an explicit, confirmed reset.
type Latch struct {
	dir      string
	services []string
	pm       ProcessManager
	logger   *slog.Logger
	pids     *pidRegistry
}

// New creates a latch rooted at dir. The services list names processes
// swept as a backstop after the PID-registry kills. A nil pm selects the
// OS process manager.
func New(dir string, services []string, pm ProcessManager, logger *slog.Logger) *Latch {
	if pm == nil {
		pm = NewOSProcessManager(logger)
	}

	return &Latch{
		dir:      dir,
		services: services,
		pm:       pm,
		logger:   logger,
		pids:     newPIDRegistry(filepath.Join(dir, pidFileName)),
	}
}

func (l *Latch) Dir() string {
	return l.dir
}

func (l *Latch) lockPath() string {
	return filepath.Join(l.dir, lockFileName)
}

// IsActive reports whether the latch is engaged. Only a provably absent
// lock artifact counts as disarmed; any other stat failure is read
// conservatively as engaged.
func (l *Latch) IsActive() bool {
	_, err := os.Stat(l.lockPath())
	if err == nil {
		return true
	}
	return !errors.Is(err, fs.ErrNotExist)
}

// Read returns the stored lock record. A present-but-corrupt artifact
// still means engaged; the zero record is returned alongside the error.
func (l *Latch) Read() (LockRecord, error) {
	var record LockRecord

	data, err := os.ReadFile(l.lockPath())
	if err != nil {
		return record, err
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return record, err
	}
	return record, nil
}

// StartupCheck is the first call a host makes at startup. It reports
// whether the latch is engaged together with whatever lock record could
// be recovered. The caller is expected to exit with ExitCodeBlocked when
// engaged is true.
func (l *Latch) StartupCheck() (LockRecord, bool) {
	if !l.IsActive() {
		return LockRecord{}, false
	}

	record, err := l.Read()
	if err != nil {
		l.logger.Error("Latch engaged but lock record unreadable",
			slog.String("path", l.lockPath()),
			slog.Any("err", err))
		return record, true
	}

	l.logger.Error("Latch engaged, refusing to start",
		slog.String("activated", record.Timestamp),
		slog.String("reason", record.Reason),
		slog.String("triggered_by", record.TriggeredBy))
	return record, true
}

// Activate engages the latch. The lock artifact is created with
// O_CREATE|O_EXCL so exactly one caller wins a concurrent activation;
// only the winner runs the kill sweep. A second activation is a no-op
// that preserves the original record.
func (l *Latch) Activate(reason, triggeredBy string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.lockPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			l.logger.Warn("Latch already engaged, keeping original record",
				slog.String("rejected_reason", reason))
			return nil
		}
		return err
	}

	record := LockRecord{
		Timestamp:   time.Now().Format(time.RFC3339),
		Reason:      reason,
		TriggeredBy: triggeredBy,
	}

	encodeErr := json.NewEncoder(f).Encode(record)
	if closeErr := f.Close(); encodeErr == nil {
		encodeErr = closeErr
	}
	if encodeErr != nil {
		// The artifact exists, so the latch is engaged regardless.
		l.logger.Error("Failed to write lock record", slog.Any("err", encodeErr))
	}

	l.logger.Error("EMERGENCY SHUTDOWN LATCH ENGAGED",
		slog.String("reason", reason),
		slog.String("triggered_by", triggeredBy))

	l.appendAudit(auditEntry{
		Event:       "ENGAGED",
		Timestamp:   record.Timestamp,
		Reason:      reason,
		TriggeredBy: triggeredBy,
	})

	l.killTracked()
	return nil
}

// RegisterPID records a monitored subprocess so the latch knows what to
// terminate. Idempotent upsert; safe before or after activation.
func (l *Latch) RegisterPID(name string, pid int) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	return l.pids.Register(name, pid)
}

// Reset disengages the latch. Without confirm it takes no action and
// returns false. With confirm it removes the lock artifact if present
// and appends a RESET audit entry.
func (l *Latch) Reset(confirm bool) (bool, error) {
	if !confirm {
		l.logger.Warn("Latch reset requires explicit confirmation, no action taken")
		return false, nil
	}

	if !l.IsActive() {
		l.logger.Info("Latch was not engaged")
		return false, nil
	}

	if err := os.Remove(l.lockPath()); err != nil {
		return false, err
	}

	l.appendAudit(auditEntry{
		Event:     "RESET",
		Timestamp: time.Now().Format(time.RFC3339),
	})

	l.logger.Info("Latch reset, host may restart")
	return true, nil
}

// appendAudit writes a newline-delimited JSON entry to the audit log.
// Audit failures are logged and swallowed: they must never block an
// activation.
func (l *Latch) appendAudit(entry auditEntry) {
	f, err := os.OpenFile(filepath.Join(l.dir, auditFileName),
		os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Error("Failed to open audit log", slog.Any("err", err))
		return
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		l.logger.Error("Failed to append audit entry", slog.Any("err", err))
	}
}

// killTracked terminates every registered PID, then sweeps the
// configured service names as a backstop. Every failure is logged and
// otherwise ignored; the shutdown sequence always runs to completion.
func (l *Latch) killTracked() {
	pids, err := l.pids.All()
	if err != nil {
		l.logger.Error("Failed to read PID registry", slog.Any("err", err))
	}

	for name, pid := range pids {
		if err := l.pm.Terminate(pid); err != nil {
			l.logger.Warn("Failed to terminate service",
				slog.String("service", name),
				slog.Int("pid", pid),
				slog.Any("err", err))
			continue
		}
		l.logger.Info("Terminated service",
			slog.String("service", name),
			slog.Int("pid", pid))
	}

	for _, name := range l.services {
		if err := l.pm.TerminateByName(name); err != nil {
			l.logger.Warn("Backstop sweep failed",
				slog.String("service", name),
				slog.Any("err", err))
		}
	}
}
