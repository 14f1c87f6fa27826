// Package latch implements the emergency shutdown interlock for the
// host: a durable, cross-restart kill switch engaged on conditions too
// severe for local recovery.
//
// The presence of the lock artifact on disk is the engaged state, so it
// survives process restarts. Engaging the latch terminates every
// process recorded in the service PID registry and appends to an
// append-only audit log. The latch stays engaged until an explicit,
// confirmed reset.
//
// Usage:
//
//	l := latch.New(dataDir, nil, nil, log)
//	if record, engaged := l.StartupCheck(); engaged {
//	    fmt.Println(record.Reason)
//	    os.Exit(latch.ExitCodeBlocked)
//	}
package latch
