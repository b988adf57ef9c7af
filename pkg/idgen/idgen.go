package idgen

import "sync/atomic"

// Generator ID生成器接口
type Generator interface {
	// NextID 生成下一个唯一且单调递增的ID
	NextID() (int64, error)
}

// Sequence 进程内自增生成器，用于测试和单机工具
type Sequence struct {
	n atomic.Int64
}

// NewSequence 从 start 之后开始计数
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

func (s *Sequence) NextID() (int64, error) {
	return s.n.Add(1), nil
}
