//go:build linux

package keystroke

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"tapmeter/internal/clock"
)

// Evdev reads a keyboard through /dev/input on Linux.
type Evdev struct {
	base
	device string
	clk    clock.Source

	file   *os.File
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewEvdev creates an evdev source. An empty device auto-detects the first
// readable keyboard.
func NewEvdev(device string, clk clock.Source) *Evdev {
	return &Evdev{base: newBase(), device: device, clk: clk}
}

// Name returns the source name.
func (e *Evdev) Name() string {
	if e.device != "" {
		return "evdev:" + e.device
	}
	return "evdev"
}

// Available checks if we can read an input device.
func (e *Evdev) Available() (bool, string) {
	devices, err := e.candidates()
	if err != nil {
		return false, fmt.Sprintf("cannot find keyboard devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard devices found"
	}

	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found keyboard device: %s", dev)
		}
	}

	return false, "cannot read keyboard devices (need to be in 'input' group or run as root)"
}

func (e *Evdev) candidates() ([]string, error) {
	if e.device != "" {
		return []string{e.device}, nil
	}
	return findKeyboardDevices()
}

// findKeyboardDevices finds /dev/input devices that are keyboards.
func findKeyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	devices := parseDeviceList(bufio.NewScanner(f))

	matches, _ := filepath.Glob("/dev/input/by-id/*-kbd")
	return append(devices, matches...), nil
}

// parseDeviceList extracts the event handlers of keyboards from the
// /proc/bus/input/devices format.
func parseDeviceList(sc *bufio.Scanner) []string {
	var devices []string
	var handler string
	kbd, hasKeys := false, false

	flush := func() {
		if kbd && hasKeys && handler != "" {
			devices = append(devices, handler)
		}
		handler, kbd, hasKeys = "", false, false
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				switch {
				case part == "kbd":
					kbd = true
				case strings.HasPrefix(part, "event"):
					handler = "/dev/input/" + part
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			hasKeys = len(line) > 10
		case line == "":
			flush()
		}
	}
	flush()
	return devices
}

// Start opens the device and begins reading.
func (e *Evdev) Start(ctx context.Context) error {
	if e.IsRunning() || e.done != nil {
		return ErrAlreadyRunning
	}

	devices, err := e.candidates()
	if err != nil || len(devices) == 0 {
		return ErrNotAvailable
	}

	var openErr error
	for _, dev := range devices {
		e.file, openErr = os.OpenFile(dev, os.O_RDONLY, 0)
		if openErr == nil {
			e.device = dev
			break
		}
	}
	if e.file == nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, openErr)
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.setRunning(true)

	go e.readLoop(ctx)
	go func() {
		// unblock the pending read
		<-ctx.Done()
		e.file.Close()
	}()

	return nil
}

// inputEvent matches the Linux input_event struct.
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Linux input constants.
const (
	evKey = 1

	keyEsc   = 1
	keyGrave = 41
	keyZ     = 44
	keyX     = 45
)

func (e *Evdev) readLoop(ctx context.Context) {
	defer close(e.done)
	defer close(e.events)
	defer e.setRunning(false)
	defer e.cancel()

	eventSize := binary.Size(inputEvent{})
	buf := make([]byte, eventSize)
	// type, code and value follow the timeval
	off := eventSize - 8

	for {
		n, err := e.file.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.EINTR) && ctx.Err() == nil {
				continue
			}
			// closed by Stop, or the device went away
			return
		}
		if n < eventSize {
			continue
		}
		now := e.clk.Now()

		typ := binary.LittleEndian.Uint16(buf[off : off+2])
		if typ != evKey {
			continue
		}
		code := binary.LittleEndian.Uint16(buf[off+2 : off+4])
		value := int32(binary.LittleEndian.Uint32(buf[off+4 : off+8]))

		ev, ok := translateEvdev(code, value)
		if !ok {
			continue
		}
		ev.Ticks = now
		if !e.emit(ctx, ev) {
			return
		}
	}
}

func translateEvdev(code uint16, value int32) (Event, bool) {
	var ev Event
	switch code {
	case keyZ:
		ev.Key = KeyZ
	case keyX:
		ev.Key = KeyX
	case keyGrave:
		ev.Key = KeyReset
	case keyEsc:
		ev.Key = KeyQuit
	default:
		ev.Key = KeyOther
	}
	switch value {
	case 0:
		ev.Action = Release
	case 1:
		ev.Action = Press
	case 2:
		ev.Action = Repeat
	default:
		return Event{}, false
	}
	return ev, true
}

// Stop stops reading.
func (e *Evdev) Stop() error {
	e.once.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
	})
	if e.done != nil {
		<-e.done
	}
	return nil
}
