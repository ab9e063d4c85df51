//go:build !linux

package keystroke

import (
	"context"

	"tapmeter/internal/clock"
)

// unsupported is used for live sources on platforms without an implementation.
type unsupported struct {
	base
	name string
}

// NewEvdev returns a source that is never available off Linux.
func NewEvdev(device string, clk clock.Source) Source {
	return &unsupported{base: newBase(), name: "evdev"}
}

// NewTerminal returns a source that is never available off Linux.
func NewTerminal(clk clock.Source) Source {
	return &unsupported{base: newBase(), name: "terminal"}
}

func (u *unsupported) Name() string { return u.name }

// Available returns false on unsupported platforms.
func (u *unsupported) Available() (bool, string) {
	return false, u.name + " input is not implemented for this platform"
}

// Start returns an error on unsupported platforms.
func (u *unsupported) Start(ctx context.Context) error {
	return ErrNotAvailable
}

// Stop is a no-op on unsupported platforms.
func (u *unsupported) Stop() error {
	return nil
}
