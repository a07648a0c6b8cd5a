package command

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidVersionJSON = errors.New("version is not valid JSON")
	ErrEmptyArgument      = errors.New("argument must not be empty")
	ErrUnknownCommand     = errors.New("unknown command")
)

// UsageError is returned when a command is invoked with too few arguments.
type UsageError struct {
	Command string
	Usage   string
	Want    int
	Got     int
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: kvprobe %s %s", e.Command, e.Usage)
}
