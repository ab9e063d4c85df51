// Package keystroke reads press and release events for the keys tapmeter
// cares about: the two tapping keys Z and X, the reset key (backquote) and,
// for interactive sources, a quit key.
//
// Platform support:
// - Linux: /dev/input/event* (requires input group or root), raw-mode TTY
// - All platforms: replay of a recorded script
package keystroke

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tapmeter/internal/clock"
)

// Key identifies the keys a source reports.
type Key int

const (
	KeyOther Key = iota
	KeyZ
	KeyX
	KeyReset
	KeyQuit
)

func (k Key) String() string {
	switch k {
	case KeyZ:
		return "z"
	case KeyX:
		return "x"
	case KeyReset:
		return "reset"
	case KeyQuit:
		return "quit"
	default:
		return "other"
	}
}

// Action is what happened to a key.
type Action int

const (
	Press Action = iota
	Release
	Repeat // auto-repeat while held
)

func (a Action) String() string {
	switch a {
	case Press:
		return "press"
	case Release:
		return "release"
	case Repeat:
		return "repeat"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Event is one key transition stamped with monotonic ticks.
type Event struct {
	Key    Key
	Action Action
	Ticks  uint64
}

// Source delivers key events.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Start begins reading. Events are delivered until ctx is cancelled,
	// Stop is called or the source runs out of input; the Events channel
	// is then closed.
	Start(ctx context.Context) error

	// Stop stops reading and waits for the reader to exit.
	Stop() error

	// Events returns the event channel.
	Events() <-chan Event

	// Available reports whether the source can run with current permissions.
	Available() (bool, string)
}

// RateSource is implemented by sources whose ticks use a fixed, known rate,
// so no calibration is needed.
type RateSource interface {
	Rate() clock.Rate
}

var (
	// ErrNotAvailable is returned when a source can't run on this platform.
	ErrNotAvailable = errors.New("keystroke: input source not available")

	// ErrAlreadyRunning is returned when Start is called while already running.
	ErrAlreadyRunning = errors.New("keystroke: source already running")
)

// Options configures Open.
type Options struct {
	Device     string       // evdev device path; empty auto-detects
	ReplayPath string       // replay script
	Pace       bool         // replay in real time
	Clock      clock.Source // tick source for live sources; nil uses clock.System
}

// Source names accepted by Open.
const (
	SourceTerminal = "terminal"
	SourceEvdev    = "evdev"
	SourceReplay   = "replay"
)

// Open creates the named source.
func Open(name string, opts Options) (Source, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System
	}
	switch name {
	case SourceTerminal:
		return NewTerminal(clk), nil
	case SourceEvdev:
		return NewEvdev(opts.Device, clk), nil
	case SourceReplay:
		if opts.ReplayPath == "" {
			return nil, errors.New("keystroke: replay source needs a script path")
		}
		return NewReplayFile(opts.ReplayPath, opts.Pace), nil
	}
	return nil, fmt.Errorf("keystroke: unknown source %q", name)
}

// base provides the running flag and event channel shared by sources.
type base struct {
	mu      sync.RWMutex
	running bool
	events  chan Event
}

func newBase() base {
	return base{events: make(chan Event, 256)}
}

// Events returns the event channel.
func (b *base) Events() <-chan Event {
	return b.events
}

// setRunning sets the running state.
func (b *base) setRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
}

// IsRunning returns the running state.
func (b *base) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// emit delivers ev, giving up when ctx is done. Events are never dropped
// while the consumer keeps up.
func (b *base) emit(ctx context.Context, ev Event) bool {
	select {
	case b.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
