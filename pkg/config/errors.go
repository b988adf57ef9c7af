package config

import "errors"

var (
	ErrValidationFailed = errors.New("config validation failed")
	ErrNilConfig        = errors.New("config cannot be nil")
	ErrBothNil          = errors.New("both dst and src cannot be nil")
)
