// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import "github.com/tinylib/msgp/msgp"

// EncodeMsg hand-implements msgp.Encodable for a trace chunk: a msgpack
// array of span maps, written directly rather than through the `msgp`
// code generator so the wire format can stay exactly in step with the
// agent's v0.4 trace endpoint.
func (sl spanList) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteArrayHeader(uint32(len(sl))); err != nil {
		return err
	}
	for _, s := range sl {
		if err := s.EncodeMsg(en); err != nil {
			return err
		}
	}
	return nil
}

// Msgsize estimates the encoded size of the chunk, used only to presize the
// output buffer; it is a rough estimate, not an exact count, and it can be
// smaller than the encoded size.
func (sl spanList) Msgsize() int {
	sz := msgp.ArrayHeaderSize
	for _, s := range sl {
		sz += s.Msgsize()
	}
	return sz
}

// spanFieldCount is the number of keys written by Span.EncodeMsg, excluding
// the optional span_links entry.
const spanFieldCount = 12

// EncodeMsg writes s as a msgpack map matching the Datadog agent's v0.4
// trace span schema.
func (s *Span) EncodeMsg(en *msgp.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := uint32(spanFieldCount)
	if len(s.spanLinks) > 0 {
		n++
	}
	if err := en.WriteMapHeader(n); err != nil {
		return err
	}

	fields := []struct {
		key string
		val func() error
	}{
		{"name", func() error { return en.WriteString(s.name) }},
		{"service", func() error { return en.WriteString(s.service) }},
		{"resource", func() error { return en.WriteString(s.resource) }},
		{"type", func() error { return en.WriteString(s.spanType) }},
		{"start", func() error { return en.WriteInt64(s.start) }},
		{"duration", func() error { return en.WriteInt64(s.duration) }},
		{"span_id", func() error { return en.WriteUint64(s.spanID) }},
		{"trace_id", func() error { return en.WriteUint64(s.context.traceID.Lower()) }},
		{"parent_id", func() error { return en.WriteUint64(s.parentID) }},
		{"error", func() error { return en.WriteInt32(s.error) }},
		{"meta", func() error { return s.encodeMeta(en) }},
		{"metrics", func() error { return s.encodeMetrics(en) }},
	}
	for _, f := range fields {
		if err := en.WriteString(f.key); err != nil {
			return err
		}
		if err := f.val(); err != nil {
			return err
		}
	}
	if len(s.spanLinks) > 0 {
		if err := en.WriteString("span_links"); err != nil {
			return err
		}
		if err := s.encodeSpanLinks(en); err != nil {
			return err
		}
	}
	return nil
}

func (s *Span) encodeMeta(en *msgp.Writer) error {
	if err := en.WriteMapHeader(uint32(len(s.meta))); err != nil {
		return err
	}
	for k, v := range s.meta {
		if err := en.WriteString(k); err != nil {
			return err
		}
		if err := en.WriteString(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Span) encodeMetrics(en *msgp.Writer) error {
	if err := en.WriteMapHeader(uint32(len(s.metrics))); err != nil {
		return err
	}
	for k, v := range s.metrics {
		if err := en.WriteString(k); err != nil {
			return err
		}
		if err := en.WriteFloat64(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Span) encodeSpanLinks(en *msgp.Writer) error {
	if err := en.WriteArrayHeader(uint32(len(s.spanLinks))); err != nil {
		return err
	}
	for _, l := range s.spanLinks {
		if err := en.WriteMapHeader(3); err != nil {
			return err
		}
		if err := en.WriteString("trace_id"); err != nil {
			return err
		}
		if err := en.WriteUint64(l.TraceID.Lower()); err != nil {
			return err
		}
		if err := en.WriteString("span_id"); err != nil {
			return err
		}
		if err := en.WriteUint64(l.SpanID); err != nil {
			return err
		}
		if err := en.WriteString("attributes"); err != nil {
			return err
		}
		if err := en.WriteMapHeader(uint32(len(l.Attributes))); err != nil {
			return err
		}
		for k, v := range l.Attributes {
			if err := en.WriteString(k); err != nil {
				return err
			}
			if err := en.WriteString(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Msgsize estimates s's encoded size for buffer presizing.
func (s *Span) Msgsize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sz := msgp.MapHeaderSize
	sz += len(s.name) + len(s.service) + len(s.resource) + len(s.spanType) + 64
	sz += msgp.MapHeaderSize
	for k, v := range s.meta {
		sz += len(k) + len(v) + 8
	}
	sz += msgp.MapHeaderSize
	for k := range s.metrics {
		sz += len(k) + 16
	}
	sz += msgp.ArrayHeaderSize
	for _, l := range s.spanLinks {
		sz += 48
		for k, v := range l.Attributes {
			sz += len(k) + len(v) + 8
		}
	}
	return sz
}
