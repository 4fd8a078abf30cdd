// Package framing delimits discrete messages inside a byte stream.
//
// Two encodings are provided:
//
//	binary: <varint length><payload>
//	text:   <decimal length>:<payload>;
//
// Parsers are resumable state machines. They are handed whatever bytes the
// transport has buffered through a Reader, consume as much as they can and
// report one of three outcomes: a complete payload, "need more data"
// (ok == false, err == nil), or a fatal format error. A parser holds mutable
// state and must not be driven by more than one goroutine at a time; separate
// parsers share nothing.
//
// Formatters are stateless and write a whole frame in one call.
package framing
