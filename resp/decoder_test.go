// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingRequest() string {
	return "*1\r\n$4\r\nping\r\n"
}

func TestDecodeNeedMoreOnEveryPrefix(t *testing.T) {
	full := pingRequest()
	for i := 1; i < len(full); i++ {
		buf := &Buffer{}
		buf.Append([]byte(full[:i]))
		before := buf.Len()
		out := Decoder{}.Decode(buf)
		require.Equal(t, NeedMore, out.Kind, "prefix length %d", i)
		assert.GreaterOrEqual(t, out.NeedBytes, 1)
		assert.Equal(t, before, buf.Len(), "NeedMore must not consume bytes")
	}
}

func TestDecodeFullRequest(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte(pingRequest()))
	out := Decoder{}.Decode(buf)
	require.Equal(t, Decoded, out.Kind)
	assert.Equal(t, []string{"ping"}, out.Value.Strings())
	assert.Equal(t, 0, buf.Len())
}

func TestDecodeLeavesTrailingBytesInBuffer(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte(pingRequest() + "trailing garbage"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, Decoded, out.Kind)
	assert.Equal(t, []string{"ping"}, out.Value.Strings())
	assert.Equal(t, len("trailing garbage"), buf.Len())
}

func TestDecodeSplitAcrossChunksEquivalence(t *testing.T) {
	full := "*2\r\n$3\r\nget\r\n$2\r\nab\r\n"

	single := &Buffer{}
	single.Append([]byte(full))
	wantOut := Decoder{}.Decode(single)
	require.Equal(t, Decoded, wantOut.Kind)

	for _, split := range [][]int{{1}, {5, 3}, {1, 1, 1, 1, 1}} {
		buf := &Buffer{}
		pos := 0
		var out Outcome
		for _, n := range split {
			buf.Append([]byte(full[pos : pos+n]))
			pos += n
			out = Decoder{}.Decode(buf)
			if out.Kind != NeedMore {
				break
			}
		}
		if out.Kind != Decoded {
			buf.Append([]byte(full[pos:]))
			out = Decoder{}.Decode(buf)
		}
		require.Equal(t, Decoded, out.Kind, "split %v", split)
		assert.True(t, out.Value.Equal(wantOut.Value), "split %v", split)
	}
}

func TestDecodeSkipsLeadingNoise(t *testing.T) {
	for k := 0; k < 4; k++ {
		noise := ""
		for i := 0; i < k; i++ {
			noise += "\r\n"
		}
		buf := &Buffer{}
		buf.Append([]byte(noise + pingRequest()))
		out := Decoder{}.Decode(buf)
		require.Equal(t, Decoded, out.Kind, "k=%d", k)
		assert.Equal(t, []string{"ping"}, out.Value.Strings())
	}
}

func TestDecodeOnlyNoiseNeedsMore(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("\r\n\r\n"))
	out := Decoder{}.Decode(buf)
	assert.Equal(t, NeedMore, out.Kind)
	assert.Equal(t, 0, buf.Len())
}

func TestDecodeMalformedArrayLength(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*a\r\n"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, ProtocolError, out.Kind)
	assert.Equal(t, "Protocol Error: Invalid Array length", out.Value.Str())
	assert.Equal(t, 0, buf.Len(), "offending bytes through CRLF are consumed")
}

func TestDecodeRejectsZeroAndNegativeOneArrayLength(t *testing.T) {
	for _, n := range []string{"*0\r\n", "*-1\r\n"} {
		buf := &Buffer{}
		buf.Append([]byte(n))
		out := Decoder{}.Decode(buf)
		require.Equal(t, ProtocolError, out.Kind, n)
		assert.Equal(t, "Protocol Error: Invalid Array length", out.Value.Str())
	}
}

func TestDecodeInvalidBulkStringLength(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*1\r\n$x\r\n"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, ProtocolError, out.Kind)
	assert.Equal(t, "Protocol Error: Invalid Bulk String length", out.Value.Str())
}

func TestDecodeExpectsTrailingCRLF(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*1\r\n$4\r\npingXX"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, ProtocolError, out.Kind)
	assert.Equal(t, `Protocol Error: Expect '\r\n'`, out.Value.Str())
}

func TestDecodeNotATopLevelArrayOfBulkStringsIsUnreachable(t *testing.T) {
	// The decoder only ever produces BulkStringArray on success; anything
	// else that looks array-shaped but contains a non-bulk-string element
	// type indicator is simply not valid input to this grammar, so it is
	// rejected as a malformed bulk string length field.
	buf := &Buffer{}
	buf.Append([]byte("*1\r\n:4\r\n"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, ProtocolError, out.Kind)
	assert.Equal(t, "Protocol Error: Invalid Bulk String length", out.Value.Str())
}

// scenario 1 from the end-to-end walkthrough.
func TestScenarioSimplePing(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*1\r\n$4\r\nping\r\n"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, Decoded, out.Kind)
	assert.Equal(t, []string{"ping"}, out.Value.Strings())
}

// scenario 3 from the end-to-end walkthrough.
func TestScenarioMalformedArrayLengthConsumesAllBytes(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*a\r\n"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, ProtocolError, out.Kind)
	assert.Equal(t, 0, buf.Len())
}

// scenario 4 from the end-to-end walkthrough.
func TestScenarioResumptionAfterSplit(t *testing.T) {
	buf := &Buffer{}
	buf.Append([]byte("*2\r\n$3\r\nge"))
	out := Decoder{}.Decode(buf)
	require.Equal(t, NeedMore, out.Kind)
	assert.Equal(t, 3, out.NeedBytes)

	buf.Append([]byte("t\r\n$2\r\nab\r\n"))
	out = Decoder{}.Decode(buf)
	require.Equal(t, Decoded, out.Kind)
	assert.Equal(t, []string{"get", "ab"}, out.Value.Strings())
	assert.Equal(t, 0, buf.Len())
}

func TestValueRoundTripsThroughEncodeDecode(t *testing.T) {
	v := BulkStringArrayValue([]string{"set", "k", "v"})
	buf := &Buffer{}
	buf.Append(v.Encode())
	out := Decoder{}.Decode(buf)
	require.Equal(t, Decoded, out.Kind)
	assert.True(t, v.Equal(out.Value))
}
