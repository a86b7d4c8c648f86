// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

// Buffer is an appendable queue of byte chunks supporting cheap prefix trim
// and chained iteration, the input shape the streaming Decoder operates on.
// Chunks are typically the individual reads off a network connection;
// Buffer never copies them on Append, only on the rare cross-chunk read
// inside the decoder itself.
type Buffer struct {
	chunks [][]byte
	// off is the read offset into chunks[0].
	off int
	// length is the total number of unread bytes across all chunks.
	length int
}

// Append queues a new chunk. The chunk is retained, not copied; callers
// must not mutate it afterwards.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.length += len(chunk)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.length }

// TrimFront discards n unread bytes from the front of the buffer.
func (b *Buffer) TrimFront(n int) {
	if n > b.length {
		panic("resp: TrimFront past buffer length")
	}
	b.length -= n
	for n > 0 {
		remaining := len(b.chunks[0]) - b.off
		if n < remaining {
			b.off += n
			return
		}
		n -= remaining
		b.chunks[0] = nil
		b.chunks = b.chunks[1:]
		b.off = 0
	}
	if len(b.chunks) == 0 {
		b.chunks = nil
	}
}

// cursor walks a Buffer without mutating it; callers commit progress via
// TrimFront(cursor.consumed()) once they decide how much to keep.
type cursor struct {
	buf     *Buffer
	chunkIx int
	inChunk int
	total   int
}

func newCursor(buf *Buffer) *cursor {
	return &cursor{buf: buf, inChunk: buf.off}
}

// consumed returns the number of bytes read so far, relative to the
// Buffer's current front (i.e. the value to pass to TrimFront).
func (c *cursor) consumed() int { return c.total }

// remaining reports unread bytes ahead of the cursor.
func (c *cursor) remaining() int { return c.buf.length - c.total }

// peekByte returns the next unread byte without advancing, and whether one
// was available.
func (c *cursor) peekByte() (byte, bool) {
	if c.remaining() == 0 {
		return 0, false
	}
	chunk := c.buf.chunks[c.chunkIx]
	return chunk[c.inChunk], true
}

// readByte returns and advances past the next unread byte.
func (c *cursor) readByte() (byte, bool) {
	v, ok := c.peekByte()
	if !ok {
		return 0, false
	}
	c.advance(1)
	return v, true
}

func (c *cursor) advance(n int) {
	for n > 0 {
		chunk := c.buf.chunks[c.chunkIx]
		remaining := len(chunk) - c.inChunk
		if n < remaining {
			c.inChunk += n
			c.total += n
			return
		}
		n -= remaining
		c.total += remaining
		c.chunkIx++
		c.inChunk = 0
	}
}

// readUntil scans forward for delim, returning the bytes up to (not
// including) it and advancing past it. ok is false if delim was not found
// in the unread data currently buffered.
func (c *cursor) readUntil(delim byte) (string, bool) {
	save := *c
	var out []byte
	for {
		b, ok := c.readByte()
		if !ok {
			*c = save
			return "", false
		}
		if b == delim {
			return string(out), true
		}
		out = append(out, b)
	}
}

// readN reads exactly n bytes. ok is false if fewer than n bytes are
// currently buffered, in which case the cursor is left unadvanced.
func (c *cursor) readN(n int) (string, bool) {
	if c.remaining() < n {
		return "", false
	}
	out := make([]byte, 0, n)
	for n > 0 {
		chunk := c.buf.chunks[c.chunkIx]
		remaining := len(chunk) - c.inChunk
		take := remaining
		if take > n {
			take = n
		}
		out = append(out, chunk[c.inChunk:c.inChunk+take]...)
		c.advance(take)
		n -= take
	}
	return string(out), true
}
