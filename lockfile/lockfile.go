// Package lockfile implements the failover lock of spec.md section 6
// "Lockfile protocol": a single Server instance holds an exclusive lock
// on a well-known file; a standby instance blocks on the same lock and
// takes over once the holder dies or its lock goes stale.
//
// No library in the example corpus implements advisory file locking —
// the closest matches (central_logger.go, vma_ssh_manager.go) only ever
// open files for straight read/write, never flock/fcntl. This package is
// therefore built directly on syscall.Flock, the standard library's
// thinnest wrapper over the kernel primitive the protocol requires; see
// DESIGN.md for the full justification.
package lockfile

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// StaleAfter is the staleness threshold spec.md section 6 names: "a
// lockfile whose mtime is more than 4 * touch-interval old is considered
// stale and a standby may steal it." TouchInterval is the monitor's
// touch cadence; the default below keeps the 4x ratio with a one-second
// touch interval.
const (
	TouchInterval = 1 * time.Second
	StaleAfter    = 4 * TouchInterval
)

// Lock is a held or pending exclusive lock on one file.
type Lock struct {
	path string
	file *os.File

	mu       sync.Mutex
	held     bool
	stopTouch chan struct{}
}

// New returns an unlocked Lock bound to path. The file is not opened
// here; TryAcquire creates it if absent.
func New(path string) *Lock {
	return &Lock{path: path}
}

// TryAcquire attempts a single non-blocking exclusive flock; it returns
// (true, nil) if the lock was acquired, (false, nil) if another process
// holds it, and a non-nil error only on an unexpected syscall failure.
func (l *Lock) TryAcquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return true, nil
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return false, fmt.Errorf("lockfile: open %s: %w", l.path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("lockfile: flock %s: %w", l.path, err)
	}

	l.file = f
	l.held = true
	return true, nil
}

// IsStale reports whether the file at path has not been touched within
// StaleAfter, the condition under which a standby may steal a dead
// holder's lock (spec.md section 6: "mtime staleness detection").
func (l *Lock) IsStale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return true // missing file cannot be held
	}
	return time.Since(info.ModTime()) > StaleAfter
}

// AcquireOrWait blocks, retrying TryAcquire every retry interval, until
// the lock is acquired or ctx-like cancellation occurs via the stop
// channel. When the lock is held elsewhere and IsStale reports the file
// stale, the file is unlinked and acquisition is retried at once. It is
// the standby's wait loop: spec.md section 6 "standby blocks on the same
// lock and takes over once the holder dies or its lock goes stale."
func (l *Lock) AcquireOrWait(retry time.Duration, stop <-chan struct{}) error {
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		ok, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if l.IsStale() {
			// The holder has stopped touching the file: unlink it so the
			// next TryAcquire creates a fresh file and locks that one.
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("lockfile: remove stale %s: %w", l.path, err)
			}
			continue
		}
		select {
		case <-ticker.C:
		case <-stop:
			return fmt.Errorf("lockfile: wait canceled before acquiring %s", l.path)
		}
	}
}

// StartTouching launches a background goroutine that touches the lock
// file's mtime every TouchInterval, the liveness signal a standby's
// IsStale check watches for. It must only be called after a successful
// TryAcquire.
func (l *Lock) StartTouching() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held || l.stopTouch != nil {
		return
	}
	l.stopTouch = make(chan struct{})
	go l.touchLoop(l.stopTouch)
}

func (l *Lock) touchLoop(stop chan struct{}) {
	ticker := time.NewTicker(TouchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if err := os.Chtimes(l.path, now, now); err != nil {
				log.WithError(err).WithField("path", l.path).Warn("Failed to touch lockfile")
			}
		case <-stop:
			return
		}
	}
}

// Release drops the lock and stops the touch loop.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	if l.stopTouch != nil {
		close(l.stopTouch)
		l.stopTouch = nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.held = false
	l.file = nil
	if err != nil {
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, err)
	}
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
