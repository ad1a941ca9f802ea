// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"bytes"
	"encoding/binary"

	"github.com/tinylib/msgp/msgp"
)

// payloadV04 builds an msgpack-encoded array of trace chunks one push() at a
// time, maintaining its own 8-byte array-length header (fixarray, array16,
// or array32 depending on the item count) so the whole thing can be streamed
// to the agent without ever re-encoding what was already pushed.
//
// Not safe for concurrent use; callers go through safePayload.
type payloadV04 struct {
	header []byte
	off    int
	count  uint32

	buf    bytes.Buffer
	reader *bytes.Reader
}

func newPayloadV04() *payloadV04 {
	return &payloadV04{header: make([]byte, 8), off: 8}
}

func (p *payloadV04) push(t spanList) (payloadStats, error) {
	p.buf.Grow(t.Msgsize())
	if err := msgp.Encode(&p.buf, t); err != nil {
		return payloadStats{}, wrapError(CodeAgentResponseMalformed, err, "encoding trace chunk")
	}
	p.count++
	p.updateHeader()
	return p.stats(), nil
}

func (p *payloadV04) itemCount() int { return int(p.count) }

func (p *payloadV04) size() int { return p.buf.Len() + len(p.header) - p.off }

func (p *payloadV04) stats() payloadStats {
	return payloadStats{size: p.size(), itemCount: p.itemCount()}
}

// reset rewinds the reader so the payload can be read a second time (e.g. a
// retried flush), without discarding already-encoded content.
func (p *payloadV04) reset() {
	p.updateHeader()
	if p.reader != nil {
		p.reader.Seek(0, 0)
	}
}

// clear empties the payload so it can start accumulating a new batch.
func (p *payloadV04) clear() {
	p.buf.Reset()
	p.reader = nil
	p.count = 0
	p.off = 8
}

func (p *payloadV04) updateHeader() {
	n := uint64(p.count)
	switch {
	case n <= 15:
		p.header[7] = msgpackArrayFix + byte(n)
		p.off = 7
	case n <= 1<<16-1:
		binary.BigEndian.PutUint64(p.header, n)
		p.header[5] = msgpackArray16
		p.off = 5
	default:
		binary.BigEndian.PutUint64(p.header, n)
		p.header[3] = msgpackArray32
		p.off = 3
	}
}

func (p *payloadV04) Read(b []byte) (n int, err error) {
	if p.off < len(p.header) {
		n = copy(b, p.header[p.off:])
		p.off += n
		return n, nil
	}
	if p.reader == nil {
		p.reader = bytes.NewReader(p.buf.Bytes())
	}
	return p.reader.Read(b)
}
