package kvsession

import (
	"bytes"
	"sync"
)

var readerPool = sync.Pool{
	New: func() any {
		return bytes.NewReader(nil)
	},
}

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var idBufferPool = sync.Pool{
	New: func() any {
		// 20 bytes of raw entropy followed by its 32-byte base32 encoding.
		b := make([]byte, idEntropyBytes+idLength)
		return &b
	},
}

// PutBuffer wipes the buffer's content and returns it to the pool.
// Encoded session payloads must not linger in pooled memory.
func PutBuffer(buf *bytes.Buffer) {
	b := buf.Bytes()
	clear(b)
	buf.Reset()
	bufferPool.Put(buf)
}
