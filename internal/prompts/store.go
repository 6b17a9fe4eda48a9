// Package prompts manages the system prompts for planning and synthesis.
// Built-in defaults can be overridden by files in a prompts directory, which
// is watched so edits take effect without restarting.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/convoke/internal/orchestrator"
	"github.com/ShayCichocki/convoke/internal/plan"
)

// Override file names recognized inside the prompts directory.
const (
	PlannerFile = "planner_system.md"
	VerdictFile = "verdict_system.md"
)

// Store serves the current planner and verdict system prompts. Reads are
// safe from any goroutine; the watcher updates them in place.
type Store struct {
	dir string

	mu      sync.RWMutex
	planner string
	verdict string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore creates a store rooted at dir. An empty dir serves the built-in
// defaults only. Existing override files are loaded immediately.
func NewStore(dir string) (*Store, error) {
	s := &Store{
		dir:     dir,
		planner: plan.DefaultPlannerSystem,
		verdict: orchestrator.DefaultVerdictSystem,
		done:    make(chan struct{}),
	}

	if dir == "" {
		return s, nil
	}

	if info, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat prompts dir: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("prompts path %s is not a directory", dir)
	}

	s.reload(PlannerFile)
	s.reload(VerdictFile)

	return s, nil
}

// Watch starts watching the prompts directory for override changes.
// No-op when the store has no directory. Close stops the watcher.
func (s *Store) Watch() error {
	if s.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompts watcher: %w", err)
	}

	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch prompts dir: %w", err)
	}

	s.watcher = watcher
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 && event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Remove == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if base == PlannerFile || base == VerdictFile {
				s.reload(base)
			}
		case <-s.watcher.Errors:
			// Watch errors are non-fatal; the loaded prompts stay valid.
		}
	}
}

// reload re-reads one override file. A missing or empty file restores the
// built-in default for that prompt.
func (s *Store) reload(name string) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	text := strings.TrimSpace(string(data))
	if err != nil || text == "" {
		text = defaultFor(name)
	}

	s.mu.Lock()
	switch name {
	case PlannerFile:
		s.planner = text
	case VerdictFile:
		s.verdict = text
	}
	s.mu.Unlock()
}

func defaultFor(name string) string {
	switch name {
	case PlannerFile:
		return plan.DefaultPlannerSystem
	case VerdictFile:
		return orchestrator.DefaultVerdictSystem
	default:
		return ""
	}
}

// PlannerSystem returns the current planner system prompt.
func (s *Store) PlannerSystem() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planner
}

// VerdictSystem returns the current verdict system prompt.
func (s *Store) VerdictSystem() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
