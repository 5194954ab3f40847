package bridge

import "errors"

var (
	// ErrUnknownDevice is returned for a device ID that is not configured.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrQueueFull is returned when a device's command queue is saturated.
	ErrQueueFull = errors.New("bridge: command queue full")
)
