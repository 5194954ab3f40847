package ircode

import "errors"

var (
	// ErrMissingCommand is returned when a (mode, fan, temperature) triple or
	// named action has no payload in the table.
	ErrMissingCommand = errors.New("ircode: command not found in table")

	// ErrInvalidTable is returned when a table file cannot be interpreted.
	ErrInvalidTable = errors.New("ircode: invalid command table")
)
