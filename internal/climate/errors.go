package climate

import (
	"errors"

	"github.com/nerrad567/irclimate/internal/ircode"
	"github.com/nerrad567/irclimate/internal/transmit"
)

var (
	// ErrOutOfRange is returned when a requested temperature is outside [MinTemp, MaxTemp].
	ErrOutOfRange = errors.New("climate: temperature out of range")

	// ErrInvalidPreset is returned when boost is requested in a mode other than cool or heat.
	ErrInvalidPreset = errors.New("climate: preset not supported in current mode")

	// ErrInvalidCommand is returned by Execute for malformed commands.
	ErrInvalidCommand = errors.New("climate: invalid command")

	// ErrInvalidConfig is returned by New for unusable device settings.
	ErrInvalidConfig = errors.New("climate: invalid device config")
)

// ErrorReason classifies an apply error for metrics labels.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInvalidPreset):
		return "invalid_preset"
	case errors.Is(err, ircode.ErrMissingCommand):
		return "missing_command"
	case errors.Is(err, transmit.ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
