// Package watcher monitors the export directory and reports report pairs
// once their files stop changing.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tapmeter/internal/export"
)

// DefaultDebounce is how long a report pair must stay unchanged.
const DefaultDebounce = 500 * time.Millisecond

// Event is a report pair that was created or rewritten. A path is empty when
// that file does not exist.
type Event struct {
	ID          int64
	SummaryPath string
	HistoryPath string
	Timestamp   time.Time
}

// Watcher monitors an export directory for report files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration

	// export id -> last change
	state   map[int64]time.Time
	stateMu sync.Mutex

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for dir. A debounce of zero uses DefaultDebounce.
func New(dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		debounce:  debounce,
		state:     make(map[int64]time.Time),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of settled report pairs.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start begins watching, creating the directory if needed.
func (w *Watcher) Start() error {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}
	w.dir = absDir

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			id, _, ok := export.ParseName(event.Name)
			if !ok {
				continue
			}

			w.stateMu.Lock()
			w.state[id] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.flushSettled(now)
		}
	}
}

// flushSettled emits every pair that has not changed for the debounce period.
func (w *Watcher) flushSettled(now time.Time) {
	threshold := now.Add(-w.debounce)

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	for id, lastMod := range w.state {
		if lastMod.After(threshold) {
			continue
		}
		ev := pairEvent(w.dir, id)
		ev.Timestamp = now
		select {
		case w.events <- ev:
			delete(w.state, id)
		default:
			// channel full, retry next tick
		}
	}
}

// Pending returns the number of pairs waiting to settle.
func (w *Watcher) Pending() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.state)
}

// Scan lists the report pairs already present in dir, oldest id first.
func Scan(dir string) ([]Event, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var out []Event
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, _, ok := export.ParseName(entry.Name())
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, pairEvent(dir, id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func pairEvent(dir string, id int64) Event {
	ev := Event{ID: id}
	if p := export.SummaryPath(dir, id); fileExists(p) {
		ev.SummaryPath = p
	}
	if p := export.HistoryPath(dir, id); fileExists(p) {
		ev.HistoryPath = p
	}
	return ev
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
