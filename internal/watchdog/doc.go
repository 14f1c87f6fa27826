// Package watchdog hosts the background monitors around the shutdown
// latch: a thermal monitor that engages the latch after sustained
// critical pressure, and a latch watcher that lets a running host react
// promptly when the latch is engaged out-of-process.
package watchdog
