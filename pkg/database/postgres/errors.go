package postgres

import "errors"

var (
	ErrNilConfig     = errors.New("postgres: config is nil")
	ErrInvalidConfig = errors.New("postgres: invalid config")
	ErrNoRows        = errors.New("postgres: no rows in result set")
)
