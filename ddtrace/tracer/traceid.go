// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"encoding/binary"
	"encoding/hex"
)

// TraceID is a 128-bit trace identifier: 8 bytes of upper half followed by 8
// bytes of lower half, big-endian, matching the W3C traceparent byte order.
// The lower 64 bits alone are the legacy Datadog trace id.
type TraceID [16]byte

// traceIDZero is a TraceID with every byte 0, used to represent "absent".
var traceIDZero TraceID

// Empty reports whether t carries no trace id at all.
func (t TraceID) Empty() bool { return t == traceIDZero }

// Lower returns the legacy 64-bit Datadog trace id (the lower half).
func (t TraceID) Lower() uint64 { return binary.BigEndian.Uint64(t[8:]) }

// Upper returns the upper 64 bits, 0 if the trace id is only 64 bits wide.
func (t TraceID) Upper() uint64 { return binary.BigEndian.Uint64(t[:8]) }

// HasUpper reports whether the upper 64 bits are non-zero.
func (t TraceID) HasUpper() bool { return t.Upper() != 0 }

// SetLower returns a copy of t with the lower 64 bits replaced by v.
func (t TraceID) SetLower(v uint64) TraceID {
	binary.BigEndian.PutUint64(t[8:], v)
	return t
}

// SetUpper returns a copy of t with the upper 64 bits replaced by v.
func (t TraceID) SetUpper(v uint64) TraceID {
	binary.BigEndian.PutUint64(t[:8], v)
	return t
}

// HexEncoded returns the lowercase 32-hex-digit representation of t, as used
// by the W3C traceparent header and the `_dd.p.tid` propagating tag.
func (t TraceID) HexEncoded() string {
	return hex.EncodeToString(t[:])
}

// UpperHex returns the lowercase 16-hex-digit representation of the upper
// half alone, the form stored in `_dd.p.tid`.
func (t TraceID) UpperHex() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], t.Upper())
	return hex.EncodeToString(b[:])
}

// TraceIDFromLower builds a 64-bit-only TraceID from its legacy low half.
func TraceIDFromLower(low uint64) TraceID {
	var t TraceID
	return t.SetLower(low)
}

// TraceIDFromHex parses a 32-hex-digit (or, for legacy 64-bit ids, up to
// 16-hex-digit) string into a TraceID.
func TraceIDFromHex(s string) (TraceID, error) {
	var t TraceID
	if len(s) > 32 || len(s) == 0 {
		return t, newError(CodeMalformedTraceID, "trace id %q has invalid length", s)
	}
	padded := s
	if len(padded)%2 != 0 {
		padded = "0" + padded
	}
	for len(padded) < 32 {
		padded = "00" + padded
	}
	b, err := hex.DecodeString(padded)
	if err != nil {
		return t, wrapError(CodeMalformedTraceID, err, "trace id %q is not valid hex", s)
	}
	copy(t[:], b)
	return t, nil
}

// SetUpperFromHex parses a 16-hex-digit string into the upper half of t.
func (t TraceID) SetUpperFromHex(s string) (TraceID, error) {
	if len(s) != 16 {
		return t, newError(CodeMalformedTraceID, "trace id upper half %q must be 16 hex digits", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return t, wrapError(CodeMalformedTraceID, err, "trace id upper half %q is not valid hex", s)
	}
	var upper [8]byte
	copy(upper[:], b)
	return t.SetUpper(binary.BigEndian.Uint64(upper[:])), nil
}
