package keystroke

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"tapmeter/internal/clock"
)

// ReplayRate is the tick rate of replayed events: one tick per nanosecond.
const ReplayRate clock.Rate = 1_000_000_000

// Step is one line of a replay script: a key pressed Gap after the
// previous step.
type Step struct {
	Key Key
	Gap time.Duration
}

// ParseScript reads a replay script. Each non-blank line is
//
//	z <ms>      Z pressed <ms> milliseconds after the previous line
//	x <ms>      X likewise
//	reset [ms]  reset key
//
// Lines starting with # are comments.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		var step Step
		switch strings.ToLower(fields[0]) {
		case "z":
			step.Key = KeyZ
		case "x":
			step.Key = KeyX
		case "reset":
			step.Key = KeyReset
		default:
			return nil, fmt.Errorf("replay: line %d: unknown key %q", line, fields[0])
		}

		switch {
		case len(fields) == 2:
			ms, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("replay: line %d: gap: %w", line, err)
			}
			step.Gap = time.Duration(ms) * time.Millisecond
		case len(fields) > 2, step.Key != KeyReset:
			return nil, fmt.Errorf("replay: line %d: want %q", line, "<key> <ms>")
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return steps, nil
}

// Replay plays back a script as key presses. Ticks are nanoseconds since
// the start of the script.
type Replay struct {
	base
	open func() (io.ReadCloser, error)
	name string
	pace bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewReplay replays the script read from r.
func NewReplay(r io.Reader, pace bool) *Replay {
	return &Replay{
		base: newBase(),
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		name: "replay",
		pace: pace,
	}
}

// NewReplayFile replays the script at path.
func NewReplayFile(path string, pace bool) *Replay {
	return &Replay{
		base: newBase(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
		name: "replay:" + path,
		pace: pace,
	}
}

// Name returns the source name.
func (r *Replay) Name() string { return r.name }

// Rate returns ReplayRate.
func (r *Replay) Rate() clock.Rate { return ReplayRate }

// Available always reports true.
func (r *Replay) Available() (bool, string) {
	return true, "replay script"
}

// Start parses the whole script, then plays it in the background.
func (r *Replay) Start(ctx context.Context) error {
	if r.IsRunning() || r.done != nil {
		return ErrAlreadyRunning
	}

	rc, err := r.open()
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	steps, err := ParseScript(rc)
	rc.Close()
	if err != nil {
		return err
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.setRunning(true)
	go r.play(ctx, steps)
	return nil
}

func (r *Replay) play(ctx context.Context, steps []Step) {
	defer close(r.done)
	defer close(r.events)
	defer r.setRunning(false)

	var ticks uint64
	for _, s := range steps {
		if r.pace && s.Gap > 0 {
			t := time.NewTimer(s.Gap)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		ticks += uint64(s.Gap)
		if !r.emit(ctx, Event{Key: s.Key, Action: Press, Ticks: ticks}) {
			return
		}
	}
}

// Stop stops playback.
func (r *Replay) Stop() error {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
	if r.done != nil {
		<-r.done
	}
	return nil
}
