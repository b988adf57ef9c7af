package prometheus

import "errors"

var (
	ErrInvalidConfig = errors.New("prometheus: invalid config")
	ErrClientClosed  = errors.New("prometheus: client closed")
)
