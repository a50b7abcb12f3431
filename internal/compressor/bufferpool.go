package compressor

import (
	"bytes"
	"sync"

	"github.com/harliandi/go-pngquant/pkg/metrics"
)

// Buffer size tiers
const (
	smallBuffer  = 64 * 1024
	mediumBuffer = 512 * 1024
	largeBuffer  = 5 * 1024 * 1024

	// Buffers that grew past this are left to the GC.
	maxPooledBuffer = 4 * largeBuffer
)

// BufferPool manages reusable output buffers to reduce GC pressure
type BufferPool struct {
	small  sync.Pool // ~64KB buffers (icons, sprites)
	medium sync.Pool // ~512KB buffers (typical quantized PNG)
	large  sync.Pool // ~5MB buffers (large images)
}

// NewBufferPool creates an empty buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

func (p *BufferPool) tier(size int) (*sync.Pool, int, string) {
	switch {
	case size <= smallBuffer:
		return &p.small, smallBuffer, "small"
	case size <= mediumBuffer:
		return &p.medium, mediumBuffer, "medium"
	default:
		return &p.large, largeBuffer, "large"
	}
}

// Get returns an empty buffer with room for about size bytes
func (p *BufferPool) Get(size int) *bytes.Buffer {
	pool, capacity, label := p.tier(size)
	if b, ok := pool.Get().(*bytes.Buffer); ok {
		metrics.RecordPoolHit(label)
		b.Reset()
		return b
	}
	metrics.RecordPoolMiss(label)
	return bytes.NewBuffer(make([]byte, 0, max(capacity, size)))
}

// Put returns a buffer to the largest tier its capacity covers; small
// buffers are dropped
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	b.Reset()
	switch c := b.Cap(); {
	case c >= largeBuffer:
		p.large.Put(b)
	case c >= mediumBuffer:
		p.medium.Put(b)
	case c >= smallBuffer:
		p.small.Put(b)
	}
}
