// Package daemon tracks a running board server through a locked PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("server already running")

// PIDFile records the server's PID. The owning process holds an exclusive
// lock on a sibling .lock file for as long as it runs, so a stale PID file
// left by a crash never reports as running.
type PIDFile struct {
	Path string
	lock *flock.Flock
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path, lock: flock.New(path + ".lock")}
}

// Acquire takes the lock and writes the current PID.
func (p *PIDFile) Acquire() error {
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", p.lock.Path(), err)
	}
	if !ok {
		pid, _ := p.Read()
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}
	if err := p.WritePID(os.Getpid()); err != nil {
		_ = p.lock.Unlock()
		return err
	}
	return nil
}

// Release removes the PID file and drops the lock.
func (p *PIDFile) Release() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return p.lock.Unlock()
}

// WritePID writes the given PID to the file.
func (p *PIDFile) WritePID(pid int) error {
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// IsRunning reports the recorded PID and whether some process holds the lock.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	if p.lock.Locked() {
		return pid, true
	}
	probe := flock.New(p.lock.Path())
	ok, err := probe.TryLock()
	if err != nil {
		return pid, false
	}
	if ok {
		_ = probe.Unlock()
		return pid, false
	}
	return pid, true
}

// Signal sends sig to the process in the PID file.
func (p *PIDFile) Signal(sig os.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
