// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLockHeld is returned when another live process already holds the
// PID file.
var ErrLockHeld = errors.New("pid file held by a live process")

// PIDFile is a single-writer process lock backed by a file containing
// the holder's PID. A stale file left by a dead process is reclaimed.
type PIDFile struct {
	path string
	pid  int
}

// AcquirePIDFile claims the lock at path for the current process. It
// fails with ErrLockHeld when the recorded PID belongs to a live
// process.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if data, err := os.ReadFile(path); err == nil {
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if parseErr == nil && pid != os.Getpid() && processAlive(pid) {
			return nil, fmt.Errorf("%w: pid %d in %s", ErrLockHeld, pid, path)
		}
		// Stale or unparseable holder: reclaim.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale pid file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read pid file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid file directory: %w", err)
	}

	pid := os.Getpid()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("commit pid file: %w", err)
	}

	return &PIDFile{path: path, pid: pid}, nil
}

// Release removes the PID file if this process still holds it.
func (p *PIDFile) Release() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr == nil && pid != p.pid {
		// Someone else reclaimed the file. Leave it alone.
		return nil
	}
	return os.Remove(p.path)
}

// processAlive probes a PID with signal 0. EPERM means the process
// exists but belongs to another user, which still counts as alive.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
