package logtail

import (
	"bytes"
	"sync"
)

// DefaultCapacity is used when NewBuffer is given a non-positive size.
const DefaultCapacity = 500

// Buffer is a fixed-size ring of log lines. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	ring    []string
	next    int
	count   int
	partial []byte
	total   uint64
}

// NewBuffer returns a Buffer that keeps the last capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: make([]string, capacity)}
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := p
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			b.partial = append(b.partial, data...)
			break
		}
		line := string(append(b.partial, data[:idx]...))
		b.partial = b.partial[:0]
		b.push(line)
		data = data[idx+1:]
	}
	return len(p), nil
}

func (b *Buffer) push(line string) {
	b.ring[b.next] = line
	b.next = (b.next + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}
	b.total++
}

// Lines returns at most maxLines of the newest complete lines, oldest first.
// A non-positive maxLines returns everything retained.
func (b *Buffer) Lines(maxLines int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.count
	if maxLines > 0 && maxLines < n {
		n = maxLines
	}
	lines := make([]string, n)
	start := (b.next - n + len(b.ring)) % len(b.ring)
	for i := 0; i < n; i++ {
		lines[i] = b.ring[(start+i)%len(b.ring)]
	}
	return lines
}

// Total reports how many lines have ever been written. The UI uses it to
// notice new output without copying the buffer.
func (b *Buffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
