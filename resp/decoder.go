// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resp

import "strconv"

// OutcomeKind identifies which case a Decode call returned.
type OutcomeKind int

const (
	// NeedMore means the buffer holds an incomplete request. NeedBytes is
	// a hint, not a hard requirement, for how many more bytes to read
	// before decoding is likely to make progress.
	NeedMore OutcomeKind = iota
	// Decoded means a full BulkStringArray request was parsed; the
	// consumed bytes have already been trimmed from the buffer.
	Decoded
	// ProtocolError means a well-formed-but-invalid message was observed.
	// The offending bytes, through the closing CRLF of the bad field,
	// have already been trimmed from the buffer. The connection is not
	// closed on account of this outcome; Value carries the Error reply.
	ProtocolError
)

// Outcome is the result of one Decoder.Decode call.
type Outcome struct {
	Kind      OutcomeKind
	NeedBytes int
	Value     Value
}

// Decoder parses RESP BulkStringArray requests off a Buffer. It holds no
// state of its own between calls: every invocation restarts from the
// buffer's current front, which is why an incomplete request is never
// partially trimmed.
type Decoder struct{}

const minBytesNeeded = 2 // len("\r\n")

// Decode attempts to parse exactly one request out of buf. See Outcome for
// the three possible results.
func (Decoder) Decode(buf *Buffer) Outcome {
	skipNoise(buf)
	if buf.Len() == 0 {
		return Outcome{Kind: NeedMore, NeedBytes: minBytesNeeded}
	}

	c := newCursor(buf)

	arrayLength, state, needed := readLength(c, '*')
	switch state {
	case lengthMoreBytesNeeded:
		return Outcome{Kind: NeedMore, NeedBytes: needed}
	case lengthInvalid:
		buf.TrimFront(c.consumed())
		return Outcome{Kind: ProtocolError, Value: ErrorValue("Protocol Error: Invalid Array length")}
	}

	if arrayLength <= 0 {
		// -1 means NULL array, 0 means empty array; both are well-formed
		// RESP but this decoder only accepts request arrays with at least
		// one element (the command name), so both are rejected.
		buf.TrimFront(c.consumed())
		return Outcome{Kind: ProtocolError, Value: ErrorValue("Protocol Error: Invalid Array length")}
	}

	strs := make([]string, 0, arrayLength)
	for i := int64(0); i < arrayLength; i++ {
		stringLength, state, needed := readLength(c, '$')
		switch state {
		case lengthMoreBytesNeeded:
			// Protocol is still in a good state, just wait for more bytes.
			// No trim: the next call restarts from this request's '*'.
			return Outcome{Kind: NeedMore, NeedBytes: needed}
		case lengthInvalid:
			buf.TrimFront(c.consumed())
			return Outcome{Kind: ProtocolError, Value: ErrorValue("Protocol Error: Invalid Bulk String length")}
		}

		if stringLength <= 0 {
			buf.TrimFront(c.consumed())
			return Outcome{Kind: ProtocolError, Value: ErrorValue("Protocol Error: Invalid Bulk String length")}
		}

		if int64(c.remaining()) < stringLength+2 {
			// No trimming here; we start over from '*' once more bytes
			// are available.
			return Outcome{Kind: NeedMore, NeedBytes: int(stringLength+2) - c.remaining()}
		}

		payload, _ := c.readN(int(stringLength))

		term, _ := c.readN(2)
		if term != "\r\n" {
			buf.TrimFront(c.consumed())
			return Outcome{Kind: ProtocolError, Value: ErrorValue(`Protocol Error: Expect '\r\n'`)}
		}

		strs = append(strs, payload)
	}

	buf.TrimFront(c.consumed())
	return Outcome{Kind: Decoded, Value: BulkStringArrayValue(strs)}
}

type lengthState int

const (
	lengthInvalid lengthState = iota
	lengthMoreBytesNeeded
	lengthValid
)

// readLength parses the length field shared by Array and Bulk String
// framing: <indicator><digits>\r\n. Both '*' (Array) and '$' (Bulk String)
// use this same grammar, differing only in the type indicator byte.
func readLength(c *cursor, indicator byte) (int64, lengthState, int) {
	if c.remaining() < minBytesNeeded {
		return 0, lengthMoreBytesNeeded, minBytesNeeded - c.remaining()
	}

	field, ok := c.readUntil('\r')
	if !ok {
		return 0, lengthMoreBytesNeeded, minBytesNeeded
	}

	if c.remaining() == 0 {
		return 0, lengthMoreBytesNeeded, 1
	}
	nl, _ := c.readByte()
	if nl != '\n' {
		return 0, lengthInvalid, 0
	}

	if len(field) < 2 || field[0] != indicator {
		return 0, lengthInvalid, 0
	}

	n, err := strconv.ParseInt(field[1:], 10, 64)
	if err != nil {
		return 0, lengthInvalid, 0
	}
	return n, lengthValid, 0
}

// skipNoise trims any prefix of consecutive "\r\n" pairs. This tolerates
// keepalive whitespace some clients send between requests.
func skipNoise(buf *Buffer) {
	for buf.Len() >= 2 {
		c := newCursor(buf)
		b0, _ := c.readByte()
		b1, _ := c.readByte()
		if b0 == '\r' && b1 == '\n' {
			buf.TrimFront(2)
			continue
		}
		return
	}
}
