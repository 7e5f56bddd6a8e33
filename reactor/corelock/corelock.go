//go:build linux

// Package corelock claims exclusive ownership of a core for the lifetime of
// a Pool, the same problem perflock's daemon solves for whole machines
// (reserving a set of cores against concurrent benchmark runs) scoped down
// to a single lcore: an advisory flock(2) on a well-known per-core file
// under the configured prefix, so two independently-started processes can
// never both claim the same lcore.
package corelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Claim holds an acquired advisory lock on one lcore's claim file.
type Claim struct {
	f *os.File
}

// Acquire takes an exclusive, non-blocking advisory lock on the claim file
// for lcore under prefix (e.g. "/var/tmp/myapp" -> "/var/tmp/myapp_cpu_lock_3"),
// writing this process's pid into it. Returns an error if another process
// already holds it.
func Acquire(prefix string, lcore int) (*Claim, error) {
	path := fmt.Sprintf("%s_cpu_lock_%d", prefix, lcore)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("corelock: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("corelock: lcore %d already claimed: %w", lcore, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0)
	}

	return &Claim{f: f}, nil
}

// Release drops the lock, closes the claim file, and unlinks it: clean
// shutdown leaves no persisted claim state behind (spec.md invariant 6).
func (c *Claim) Release() error {
	if c == nil || c.f == nil {
		return nil
	}
	_ = unix.Flock(int(c.f.Fd()), unix.LOCK_UN)
	name := c.f.Name()
	err := c.f.Close()
	if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
		if err == nil {
			err = rmErr
		}
	}
	return err
}
