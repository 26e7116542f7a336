package cli

import "errors"

// Sentinel error kinds for command handling.
var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
	ErrAnswerLog      = errors.New("read answer log failed")
)
