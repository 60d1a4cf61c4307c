// Package procwatch waits on processes identified by a name pattern.
package procwatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrProcessNotFound is returned by Find when no process name matches.
var ErrProcessNotFound = errors.New("process not found")

// ProcessInfo identifies a running process.
type ProcessInfo struct {
	PID  int
	Name string
}

// Lister enumerates running processes.
type Lister interface {
	List() ([]ProcessInfo, error)
}

// ProcLister reads the process table from a procfs mount.
type ProcLister struct {
	// Root is the procfs mount point. Empty means /proc.
	Root string
}

// List returns every process whose comm file could be read. Processes that
// exit while the table is being read are skipped.
func (l ProcLister) List() ([]ProcessInfo, error) {
	root := l.Root
	if root == "" {
		root = "/proc"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	procs := make([]ProcessInfo, 0, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(root, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, Name: strings.TrimSpace(string(comm))})
	}
	return procs, nil
}

// Watcher polls a Lister.
type Watcher struct {
	lister   Lister
	interval time.Duration
}

// NewWatcher creates a watcher. A non-positive interval defaults to 100ms.
func NewWatcher(lister Lister, interval time.Duration) *Watcher {
	if lister == nil {
		lister = ProcLister{}
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Watcher{lister: lister, interval: interval}
}

// Find returns the first process whose name matches pattern.
func (w *Watcher) Find(pattern string) (ProcessInfo, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ProcessInfo{}, fmt.Errorf("invalid process pattern %q: %w", pattern, err)
	}
	return w.find(re)
}

func (w *Watcher) find(re *regexp.Regexp) (ProcessInfo, error) {
	procs, err := w.lister.List()
	if err != nil {
		return ProcessInfo{}, err
	}
	for _, p := range procs {
		if re.MatchString(p.Name) {
			return p, nil
		}
	}
	return ProcessInfo{}, fmt.Errorf("pattern %q not found in process names: %w", re.String(), ErrProcessNotFound)
}

// Wait blocks until a process matching pattern has appeared and then exited,
// or ctx is done.
func (w *Watcher) Wait(ctx context.Context, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid process pattern %q: %w", pattern, err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var target ProcessInfo
	for {
		p, err := w.find(re)
		if err == nil {
			target = p
			break
		}
		if !errors.Is(err, ErrProcessNotFound) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %q to start: %w", pattern, ctx.Err())
		case <-ticker.C:
		}
	}

	for {
		alive, err := w.alive(target.PID)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pid %d (%s) to exit: %w", target.PID, target.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *Watcher) alive(pid int) (bool, error) {
	procs, err := w.lister.List()
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.PID == pid {
			return true, nil
		}
	}
	return false, nil
}
