package redis

import "errors"

var (
	ErrNilConfig = errors.New("redis config is nil")

	// ErrInvalidConfig Standalone/Cluster 必须且只能配置一种
	ErrInvalidConfig = errors.New("invalid redis config: must specify exactly one of standalone or cluster mode")

	// ErrNil 键不存在
	ErrNil = errors.New("redis: nil")
)
