package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source 抽卡使用的随机源，Float64 返回 [0,1) 内的值
type Source interface {
	Float64() float64
}

// CryptoSource 基于 crypto/rand 的随机源，线上默认使用
type CryptoSource struct{}

// Float64 取 53 位随机数映射到 [0,1)
func (CryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand 在支持的平台上不会失败
		panic(err)
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// SeededSource 固定种子的 PCG 随机源，可并发使用，用于复现抽卡序列
type SeededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource 创建固定种子随机源
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// SequenceSource 按顺序返回预设值的随机源，耗尽后从头循环
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource 创建序列随机源，values 必须非空且都在 [0,1) 内
func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		panic("engine: empty sequence source")
	}
	for _, v := range values {
		if v < 0 || v >= 1 {
			panic("engine: sequence value out of [0,1)")
		}
	}
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Consumed 已读取的次数
func (s *SequenceSource) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
