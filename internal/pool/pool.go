package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Pools for the spool's encode path. Spool writes happen in bursts when the
// broker misbehaves, so reusing buffers and gzip writers keeps those bursts
// from churning the heap.

var (
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 4*1024))
		},
	}

	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// Buffers above this cap are left to the GC instead of being pooled.
const maxBufferCap = 1 * 1024 * 1024

func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
