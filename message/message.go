// Package message provides the pool-backed message buffers the weft stack
// passes between its layers. A message is a single owned byte sequence with
// reserved front headroom for lower-layer headers, a current length, and a
// read/write cursor that marks where the current layer's payload begins.
//
// Buffers come from a fixed-size Pool so an embedded build runs with a
// bounded memory footprint; allocation failure is an ordinary runtime
// condition (ErrNoBufs), not a fatal one.
package message

import (
	"errors"

	"github.com/weftmesh/weft/ip6"
)

var (
	// ErrNoBufs is returned when the pool has no free buffer, or when a
	// requested length exceeds the buffer's capacity.
	ErrNoBufs = errors.New("no buffer space available")

	// ErrNoHeadroom is returned by Prepend when the reserved front
	// headroom cannot hold the data.
	ErrNoHeadroom = errors.New("insufficient message headroom")
)

// Pool is a fixed free-list of equally-sized message buffers. One pool
// serves one stack instance.
type Pool struct {
	bufSize int
	free    chan []byte
}

// NewPool creates a pool of count buffers of bufSize bytes each.
func NewPool(count, bufSize int) *Pool {
	p := &Pool{
		bufSize: bufSize,
		free:    make(chan []byte, count),
	}
	for i := 0; i < count; i++ {
		p.free <- make([]byte, bufSize)
	}
	return p
}

// New takes a buffer from the pool and returns it as an empty message with
// the first reserved bytes kept as front headroom. It returns ErrNoBufs
// when the pool is exhausted or reserved exceeds the buffer size.
func (p *Pool) New(reserved int) (*Message, error) {
	if reserved < 0 || reserved > p.bufSize {
		return nil, ErrNoBufs
	}
	select {
	case buf := <-p.free:
		return &Message{buf: buf, reserved: reserved, pool: p}, nil
	default:
		return nil, ErrNoBufs
	}
}

// Available returns how many buffers are currently free.
func (p *Pool) Available() int {
	return len(p.free)
}

// Message is an owned, mutable byte sequence. Its visible content is
// buf[reserved : reserved+length]; offsets used by the accessors below are
// relative to the start of the visible content. Exactly one context owns a
// message at a time; ownership passes to the datagram layer on a successful
// send and stays with the caller on failure.
type Message struct {
	buf      []byte
	reserved int
	length   int
	offset   int
	pool     *Pool
	freed    bool
}

func (m *Message) content() []byte {
	return m.buf[m.reserved : m.reserved+m.length]
}

// Prepend inserts data in front of the existing content, consuming front
// headroom. Existing content and the cursor keep their positions relative
// to the data now in front of them.
func (m *Message) Prepend(data []byte) error {
	if len(data) > m.reserved {
		return ErrNoHeadroom
	}
	m.reserved -= len(data)
	m.length += len(data)
	copy(m.buf[m.reserved:], data)
	return nil
}

// SetLength sets the visible content length, growing into the buffer's tail
// capacity or truncating. Grown bytes are not cleared. Returns ErrNoBufs if
// the buffer cannot hold the requested length.
func (m *Message) SetLength(n int) error {
	if n < 0 || m.reserved+n > len(m.buf) {
		return ErrNoBufs
	}
	m.length = n
	if m.offset > n {
		m.offset = n
	}
	return nil
}

// Length returns the visible content length.
func (m *Message) Length() int {
	return m.length
}

// Offset returns the read/write cursor position.
func (m *Message) Offset() int {
	return m.offset
}

// SetOffset positions the cursor, clamped to the content range.
func (m *Message) SetOffset(n int) {
	if n < 0 {
		n = 0
	}
	if n > m.length {
		n = m.length
	}
	m.offset = n
}

// MoveOffset advances the cursor by delta (negative moves it back).
func (m *Message) MoveOffset(delta int) {
	m.SetOffset(m.offset + delta)
}

// Write copies data into the content at the given offset, bounded by the
// current length, and returns the number of bytes written.
func (m *Message) Write(offset int, data []byte) int {
	if offset < 0 || offset >= m.length {
		return 0
	}
	return copy(m.content()[offset:], data)
}

// Read copies content starting at the given offset into data and returns
// the number of bytes actually read.
func (m *Message) Read(offset int, data []byte) int {
	if offset < 0 || offset >= m.length {
		return 0
	}
	return copy(data, m.content()[offset:])
}

// CopyTo duplicates n bytes starting at srcOffset into dst starting at
// dstOffset, and returns the number of bytes copied. The destination range
// must already be within dst's length.
func (m *Message) CopyTo(srcOffset, dstOffset, n int, dst *Message) int {
	if srcOffset < 0 || srcOffset >= m.length {
		return 0
	}
	src := m.content()[srcOffset:]
	if n < len(src) {
		src = src[:n]
	}
	return dst.Write(dstOffset, src)
}

// UpdateChecksum folds the internet checksum over n content bytes starting
// at offset, combined with the running sum. The range is clamped to the
// visible content.
func (m *Message) UpdateChecksum(sum uint16, offset, n int) uint16 {
	if offset < 0 || offset >= m.length {
		return sum
	}
	buf := m.content()[offset:]
	if n < len(buf) {
		buf = buf[:n]
	}
	return ip6.Checksum(buf, sum)
}

// Bytes returns the visible content, from position 0 through the current
// length. The returned slice aliases the message buffer and is valid only
// while the caller owns the message.
func (m *Message) Bytes() []byte {
	return m.content()
}

// Free returns the underlying buffer to the pool. Freeing twice is a no-op.
func (m *Message) Free() {
	if m.freed || m.pool == nil {
		return
	}
	m.freed = true
	m.pool.free <- m.buf[:cap(m.buf)]
	m.buf = nil
}
