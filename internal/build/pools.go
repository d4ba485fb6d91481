package build

import (
	"bytes"
	"sync"
)

const (
	minPooledBuffer = 1 << 10
	maxPooledBuffer = 16 << 20
)

// ObjectPools pools the read buffers used for hashing sources.
type ObjectPools struct {
	buffers sync.Pool
}

// NewObjectPools creates the pools.
func NewObjectPools() *ObjectPools {
	return &ObjectPools{
		buffers: sync.Pool{
			New: func() interface{} {
				// Typical partner sources are a few hundred KB.
				return bytes.NewBuffer(make([]byte, 0, 256<<10))
			},
		},
	}
}

// GetBuffer returns an empty buffer.
func (p *ObjectPools) GetBuffer() *bytes.Buffer {
	buf := p.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Very small or very large buffers are dropped.
func (p *ObjectPools) PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if c := buf.Cap(); c >= minPooledBuffer && c <= maxPooledBuffer {
		p.buffers.Put(buf)
	}
}
