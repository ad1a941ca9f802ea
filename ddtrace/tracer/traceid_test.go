// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDLowerUpperRoundTrip(t *testing.T) {
	assert := assert.New(t)
	var id TraceID
	id = id.SetLower(0x1122334455667788)
	id = id.SetUpper(0x99aabbccddeeff00)

	assert.Equal(uint64(0x1122334455667788), id.Lower())
	assert.Equal(uint64(0x99aabbccddeeff00), id.Upper())
	assert.True(id.HasUpper(), "HasUpper() should be true once the upper half is set")
}

func TestTraceIDEmpty(t *testing.T) {
	assert := assert.New(t)
	var id TraceID
	assert.True(id.Empty(), "zero-value TraceID should be Empty")
	id = id.SetLower(1)
	assert.False(id.Empty(), "TraceID with a lower half set should not be Empty")
}

func TestTraceIDHexRoundTrip(t *testing.T) {
	var id TraceID
	id = id.SetLower(0x1122334455667788)
	id = id.SetUpper(0x99aabbccddeeff00)

	hex := id.HexEncoded()
	got, err := TraceIDFromHex(hex)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTraceIDFromHexLegacy64Bit(t *testing.T) {
	got, err := TraceIDFromHex("1234567890abcdef")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234567890abcdef), got.Lower())
	assert.False(t, got.HasUpper(), "a 16-hex-digit id should not populate the upper half")
}

func TestTraceIDFromHexRejectsOverlong(t *testing.T) {
	_, err := TraceIDFromHex("1122334455667788112233445566778899")
	assert.Error(t, err, "expected an error for a trace id longer than 32 hex digits")
	_, err = TraceIDFromHex("")
	assert.Error(t, err, "expected an error for an empty trace id")
}

func TestSetUpperFromHex(t *testing.T) {
	var id TraceID
	id = id.SetLower(42)
	id, err := id.SetUpperFromHex("0000000065a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, "0000000065a1b2c3", id.UpperHex())

	_, err = id.SetUpperFromHex("too-short")
	assert.Error(t, err, "expected an error for a malformed upper half")
}
