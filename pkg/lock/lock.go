// Package lock implements the advisory file lock: mutual exclusion on
// a named path via symbolic-link creation, with the holder's identity
// encoded directly in the link target so a contending process can
// report who holds it.
package lock

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/heathsc/gembsctl/pkg/log"
	"github.com/heathsc/gembsctl/pkg/signal"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	defaultWaitTimeout  = 300 * time.Second
)

var (
	pollInterval = defaultPollInterval
	waitTimeout  = defaultWaitTimeout
)

// SetTiming overrides the poll interval and overall timeout WaitFor
// uses, so a deployment's runtime config can tune contention behavior
// without the lock package depending on it directly.
func SetTiming(poll, timeout time.Duration) {
	pollInterval = poll
	waitTimeout = timeout
}

// ErrLocked is returned when the lock is already held by someone else.
type ErrLocked struct {
	Holder string
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("lock held by %s", e.Holder)
}

// ErrTimeout is returned by WaitFor after 300s of continuous contention.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// ErrSignal is returned by WaitFor when the signal word goes non-zero
// while waiting.
var ErrSignal = errors.New("lock: aborted by signal")

// Lock is a held advisory lock. Close releases it.
type Lock struct {
	path string
}

// Path returns the lock-link path (not the target path it protects).
func (l *Lock) Path() string { return l.path }

// LockPath derives the lock's sibling path from the file it protects:
// the file name gets a "." prefix (if not already present) and a
// "#gemBS_lock" suffix, within the same directory.
func LockPath(target string) string {
	dir, base := filepath.Split(target)
	if len(base) == 0 || base[0] != '.' {
		base = "." + base
	}
	return filepath.Join(dir, base+"#gemBS_lock")
}

// Identity returns the caller identity string "user@host.pid" used as
// the lock-link target.
func Identity() string {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	if name == "" {
		name = strconv.Itoa(os.Getuid())
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s@%s.%d", name, host, os.Getpid())
}

// Acquire attempts to create the lock link at LockPath(target) once.
// It returns *ErrLocked{holder} if the link already exists, or any
// other filesystem error verbatim. No link is left behind on failure.
func Acquire(target string) (*Lock, error) {
	p := LockPath(target)
	if err := os.Symlink(Identity(), p); err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, rerr := os.Readlink(p)
			if rerr != nil {
				return nil, fmt.Errorf("lock: reading existing lock %s: %w", p, rerr)
			}
			return nil, &ErrLocked{Holder: holder}
		}
		return nil, fmt.Errorf("lock: creating %s: %w", p, err)
	}
	return &Lock{path: p}, nil
}

// WaitFor retries Acquire at 250ms intervals until it succeeds, the
// signal word goes non-zero (ErrSignal), or 300s of continuous
// contention elapse (ErrTimeout). The first contention is logged once
// as a warning naming the holder.
func WaitFor(target string) (*Lock, error) {
	lg := log.WithComponent("lock")
	deadline := time.Now().Add(waitTimeout)
	warned := false

	for {
		l, err := Acquire(target)
		if err == nil {
			return l, nil
		}
		var locked *ErrLocked
		if !errors.As(err, &locked) {
			return nil, err
		}
		if !warned {
			lg.Warn().Str("holder", locked.Holder).Str("path", target).Msg("waiting for lock held by another process")
			warned = true
		}
		if signal.Get() != 0 {
			return nil, ErrSignal
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		time.Sleep(pollInterval)
		if signal.Get() != 0 {
			return nil, ErrSignal
		}
	}
}

// Force removes the target path itself (not the lock link) before
// attempting acquisition. Used only by an explicit clear operation
// that the operator has confirmed.
func Force(target string) (*Lock, error) {
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("lock: force-removing %s: %w", target, err)
	}
	return Acquire(target)
}

// Close releases the lock unconditionally. Failures are logged but
// never returned; releasing a lock whose holder is shutting down
// should never itself become a fatal error.
func (l *Lock) Close() {
	if l == nil {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		logger := log.WithComponent("lock")
		logger.Warn().Err(err).Str("path", l.path).Msg("failed to release lock")
	}
}
