//go:build linux

package keystroke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"tapmeter/internal/clock"
)

// Terminal reads key presses from the controlling terminal in raw mode.
// Terminals report neither releases nor auto-repeat, so every byte is a press.
type Terminal struct {
	base
	clk  clock.Source
	file *os.File

	saved  *unix.Termios
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewTerminal creates a terminal source on standard input.
func NewTerminal(clk clock.Source) *Terminal {
	return &Terminal{base: newBase(), clk: clk, file: os.Stdin}
}

// Name returns the source name.
func (t *Terminal) Name() string { return "terminal" }

// Available reports whether standard input is a terminal.
func (t *Terminal) Available() (bool, string) {
	if _, err := unix.IoctlGetTermios(int(t.file.Fd()), unix.TCGETS); err != nil {
		return false, "standard input is not a terminal"
	}
	return true, "terminal on standard input"
}

// Start switches the terminal to raw mode and begins reading.
func (t *Terminal) Start(ctx context.Context) error {
	if t.IsRunning() || t.done != nil {
		return ErrAlreadyRunning
	}

	fd := int(t.file.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Iflag &^= unix.IXON | unix.ICRNL
	// return after 100ms without input so the loop can notice cancellation
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 1
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return fmt.Errorf("terminal raw mode: %w", err)
	}
	t.saved = saved

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.setRunning(true)
	go t.readLoop(ctx)
	return nil
}

func (t *Terminal) readLoop(ctx context.Context) {
	defer close(t.done)
	defer close(t.events)
	defer t.setRunning(false)

	fd := int(t.file.Fd())
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		// read(2) directly: os.File reports the VTIME timeout as EOF
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return
		}
		now := t.clk.Now()
		for _, b := range buf[:n] {
			if !t.emit(ctx, Event{Key: translateByte(b), Action: Press, Ticks: now}) {
				return
			}
		}
	}
}

func translateByte(b byte) Key {
	switch b {
	case 'z', 'Z':
		return KeyZ
	case 'x', 'X':
		return KeyX
	case '`':
		return KeyReset
	case 'q', 'Q', 0x04: // ^D
		return KeyQuit
	}
	return KeyOther
}

// Stop stops reading and restores the terminal.
func (t *Terminal) Stop() error {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
	})
	if t.done != nil {
		<-t.done
	}
	if t.saved != nil {
		err := unix.IoctlSetTermios(int(t.file.Fd()), unix.TCSETS, t.saved)
		t.saved = nil
		return err
	}
	return nil
}
