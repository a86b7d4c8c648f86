// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resp implements the wire value model and streaming decoder for a
// Redis-protocol-compatible request/response framing.
//
// Only the subset of RESP needed by this service is supported: requests are
// always a top-level Array of Bulk String (a command name plus its
// arguments); responses may be any of Integer, Error, SimpleString, Bulk
// String, Array, or the BulkStringArray shorthand. A NullBulk value and an
// AsyncPlaceholder sentinel round out the set — the latter never reaches
// the wire and exists only to mark a response slot awaiting an asynchronous
// handler's result.
package resp

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies which variant of Value is populated.
type Type int

const (
	Integer Type = iota
	Error
	SimpleString
	BulkString
	Array
	// BulkStringArray is the common case of an Array whose every element is
	// a BulkString; it is kept as its own variant to avoid allocating a
	// Value per element for the overwhelmingly common command-array shape.
	BulkStringArray
	NullBulk
	// AsyncPlaceholder marks a response slot whose value will be filled in
	// later by an asynchronous handler. Encoding it is a program error.
	AsyncPlaceholder
)

var typeIndicator = [...]byte{
	Integer:         ':',
	Error:           '-',
	SimpleString:    '+',
	BulkString:      '$',
	Array:           '*',
	BulkStringArray: '*',
	NullBulk:        '$',
}

// Value is a tagged union over the RESP value variants. The zero Value is
// the Integer 0 (encoded ":0\r\n"); use Null for a NullBulk.
type Value struct {
	typ   Type
	i     int64
	s     string
	arr   []Value
	strs  []string
}

// Int constructs an Integer value.
func Int(v int64) Value {
	return Value{typ: Integer, i: v}
}

// ErrorValue constructs an Error value from a plain-text message.
func ErrorValue(msg string) Value {
	return Value{typ: Error, s: msg}
}

// Errorf constructs an Error value with a formatted message.
func Errorf(format string, a ...interface{}) Value {
	return Value{typ: Error, s: fmt.Sprintf(format, a...)}
}

// SimpleStringValue constructs a SimpleString value.
func SimpleStringValue(s string) Value {
	return Value{typ: SimpleString, s: s}
}

// BulkStringValue constructs a BulkString value.
func BulkStringValue(s string) Value {
	return Value{typ: BulkString, s: s}
}

// FromInt64 encodes an int64 as its big-endian 8-byte binary form wrapped in
// a BulkString, the wire shape used for opaque sequence and offset values
// throughout the service.
func FromInt64(v int64) Value {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return BulkStringValue(string(buf[:]))
}

// ArrayValue constructs an Array value from mixed-type elements.
func ArrayValue(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{typ: Array, arr: elems}
}

// BulkStringArrayValue constructs a BulkStringArray value, the shape every
// decoded request takes.
func BulkStringArrayValue(elems []string) Value {
	if elems == nil {
		elems = []string{}
	}
	return Value{typ: BulkStringArray, strs: elems}
}

// EmptyArray returns the canonical empty Array, used as the Redis
// "empty list or set" reply.
func EmptyArray() Value {
	return Value{typ: Array, arr: []Value{}}
}

// Null returns the NullBulk value.
func Null() Value {
	return Value{typ: NullBulk}
}

// GoAway returns the unsolicited Error sent to a client on connection
// teardown.
func GoAway() Value {
	return ErrorValue("GOAWAY")
}

// Placeholder returns the AsyncPlaceholder sentinel.
func Placeholder() Value {
	return Value{typ: AsyncPlaceholder}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsAsyncPlaceholder() bool { return v.typ == AsyncPlaceholder }

// Int64 returns the Integer payload. Panics if v is not an Integer.
func (v Value) Int64() int64 {
	if v.typ != Integer {
		panic("resp: Int64 called on non-Integer Value")
	}
	return v.i
}

// Str returns the payload for Error, SimpleString, and BulkString values.
// Panics for any other type.
func (v Value) Str() string {
	switch v.typ {
	case Error, SimpleString, BulkString:
		return v.s
	default:
		panic("resp: Str called on a Value with no string payload")
	}
}

// AsInt64 decodes a BulkString holding the big-endian 8-byte form produced
// by FromInt64. Panics if v is not a BulkString of exactly 8 bytes.
func (v Value) AsInt64() int64 {
	if v.typ != BulkString || len(v.s) != 8 {
		panic("resp: AsInt64 called on a Value that is not an 8-byte BulkString")
	}
	var out int64
	for i := 0; i < 8; i++ {
		out = out<<8 | int64(byte(v.s[i]))
	}
	return out
}

// Elems returns the Array payload. Panics if v is not an Array.
func (v Value) Elems() []Value {
	if v.typ != Array {
		panic("resp: Elems called on non-Array Value")
	}
	return v.arr
}

// Strings returns the BulkStringArray payload. Panics if v is not a
// BulkStringArray.
func (v Value) Strings() []string {
	if v.typ != BulkStringArray {
		panic("resp: Strings called on non-BulkStringArray Value")
	}
	return v.strs
}

// Equal reports structural equality: same type, same payload, and for
// Array/BulkStringArray, equal length followed by element-wise equality.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case Integer:
		return v.i == o.i
	case Error, SimpleString, BulkString:
		return v.s == o.s
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case BulkStringArray:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case NullBulk, AsyncPlaceholder:
		return true
	default:
		return false
	}
}

// escape backslash-escapes embedded \r and \n, matching the wire rule for
// Error and SimpleString payloads.
func escape(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Encode renders v in its deterministic wire form. Encoding an
// AsyncPlaceholder is a program error: the ordering adapter must resolve it
// to a real value before any byte ever reaches the wire.
func (v Value) Encode() []byte {
	var b strings.Builder
	v.encodeTo(&b)
	return []byte(b.String())
}

func (v Value) encodeTo(b *strings.Builder) {
	switch v.typ {
	case Integer:
		b.WriteByte(typeIndicator[Integer])
		b.WriteString(strconv.FormatInt(v.i, 10))
		b.WriteString("\r\n")
	case Error, SimpleString:
		b.WriteByte(typeIndicator[v.typ])
		b.WriteString(escape(v.s))
		b.WriteString("\r\n")
	case BulkString:
		b.WriteByte(typeIndicator[BulkString])
		b.WriteString(strconv.Itoa(len(v.s)))
		b.WriteString("\r\n")
		b.WriteString(v.s)
		b.WriteString("\r\n")
	case Array:
		b.WriteByte(typeIndicator[Array])
		b.WriteString(strconv.Itoa(len(v.arr)))
		b.WriteString("\r\n")
		for _, e := range v.arr {
			e.encodeTo(b)
		}
	case BulkStringArray:
		b.WriteByte(typeIndicator[BulkStringArray])
		b.WriteString(strconv.Itoa(len(v.strs)))
		b.WriteString("\r\n")
		for _, s := range v.strs {
			b.WriteByte(typeIndicator[BulkString])
			b.WriteString(strconv.Itoa(len(s)))
			b.WriteString("\r\n")
			b.WriteString(s)
			b.WriteString("\r\n")
		}
	case NullBulk:
		b.WriteString("$-1\r\n")
	case AsyncPlaceholder:
		panic("resp: attempted to encode an AsyncPlaceholder Value")
	default:
		panic(fmt.Sprintf("resp: unknown Value type %d", v.typ))
	}
}
