package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// FindLogs returns every regular file under dir, sorted. A missing dir yields
// no files and no error.
func FindLogs(dir string) ([]string, error) {
	var logs []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.Type().IsRegular() {
			logs = append(logs, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(logs)
	return logs, nil
}

// DumpLogs writes a listing of the log files under dir followed by the
// content of each one.
func DumpLogs(dir string, w io.Writer) error {
	logs, err := FindLogs(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "potential install logs in %s:\n", dir)
	for _, l := range logs {
		fmt.Fprintf(w, "    %s\n", l)
	}

	for _, l := range logs {
		fmt.Fprintf(w, "    --------: %s\n", l)
		if err := copyFile(w, l); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Follower streams log files under a directory as they grow.
type Follower struct {
	dir    string
	out    io.Writer
	logger zerolog.Logger

	mu      sync.Mutex
	offsets map[string]int64
}

// NewFollower creates a follower for dir writing to out.
func NewFollower(dir string, out io.Writer, logger zerolog.Logger) *Follower {
	return &Follower{
		dir:     dir,
		out:     out,
		logger:  telemetry.WithComponent(logger, "log_follower").With().Str("dir", dir).Logger(),
		offsets: make(map[string]int64),
	}
}

// Follow watches the directory tree until ctx is done, copying newly written
// bytes of every file to the output. The directory is created if missing so
// the watch can be set up before the installer starts writing.
func (f *Follower) Follow(ctx context.Context) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := f.addTree(watcher, f.dir); err != nil {
		return err
	}

	f.logger.Debug().Msg("Started following install logs")

	for {
		select {
		case <-ctx.Done():
			// Pick up anything written between the last event and shutdown.
			f.flushAll()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			f.handle(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn().Err(err).Msg("Log watcher error")
		}
	}
}

func (f *Follower) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := f.addTree(watcher, event.Name); err != nil {
				f.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
			}
		}
		return
	}
	if info.Mode().IsRegular() {
		f.flush(event.Name)
	}
}

func (f *Follower) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
			return nil
		}
		if d.Type().IsRegular() {
			f.flush(p)
		}
		return nil
	})
}

func (f *Follower) flushAll() {
	logs, err := FindLogs(f.dir)
	if err != nil {
		return
	}
	for _, l := range logs {
		f.flush(l)
	}
}

// flush copies bytes appended to name since the last flush.
func (f *Follower) flush(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(name)
	if err != nil {
		return
	}
	defer file.Close()

	offset, seen := f.offsets[name]
	if !seen {
		fmt.Fprintf(f.out, "    --------: %s\n", name)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return
	}
	n, err := io.Copy(f.out, file)
	f.offsets[name] = offset + n
	if err != nil {
		f.logger.Warn().Err(err).Str("path", name).Msg("Failed to copy log content")
	}
}
