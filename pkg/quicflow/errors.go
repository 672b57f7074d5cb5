package quicflow

import (
	"errors"
)

var (
	ErrInvalidCfg    = errors.New("quicflow: invalid options")
	ErrSinkClosed    = errors.New("quicflow: sink already completed")
	ErrStreamWrite   = errors.New("quicflow: error writing to the stream")
	ErrTooLargeFrame = errors.New("quicflow: frame exceeds the configured limit")
)
