package outflow

import (
	"errors"
)

var (
	ErrInvalidCfg = errors.New("outflow: invalid options")

	ErrWriterClosed = errors.New("writer: already completed")
	ErrSinkWrite    = errors.New("writer: error forwarding element to sink")
)
