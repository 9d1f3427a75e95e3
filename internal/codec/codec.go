// Package codec provides WarpGraph's canonical binary encoding.
//
// Every byte sequence that two peers must agree on bit-for-bit — patch
// payloads, checkpoint blobs, materialized-state digests — goes through this
// package. Determinism is the only contract that matters: the same Go value
// must always produce the same bytes, regardless of map insertion order or
// which goroutine built it.
//
// Internally this wraps a canonical CBOR codec (map keys sorted in
// byte order before encoding, as CBOR's own canonicalization rules require)
// rather than hand-rolling a binary format.
//
// Example:
//
//	b, err := codec.Encode(patch)
//	if err != nil {
//		return fmt.Errorf("encode patch: %w", err)
//	}
//	var decoded Patch
//	if err := codec.Decode(b, &decoded); err != nil {
//		return fmt.Errorf("decode patch: %w", err)
//	}
package codec

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// EncodeError wraps an encoding failure with its cause.
type EncodeError struct {
	Reason string
	Cause  error
}

func (e *EncodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: encode failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("codec: encode failed: %s", e.Reason)
}

func (e *EncodeError) Unwrap() error { return e.Cause }

// DecodeError wraps a decoding failure with its cause.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: decode failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("codec: decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// handle returns a fresh canonical CBOR handle.
//
// A fresh handle per call avoids any shared mutable state between concurrent
// encode/decode calls — codec.Handle is safe to share once configured, but a
// new handle keeps this package trivially free of global state to reason
// about.
func handle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	h.SortEmbeddedRoot = true
	return h
}

// Encode serializes v into WarpGraph's canonical byte form.
//
// Map keys (at every nesting level) are sorted before serialization; there
// is never more than one valid encoding of a given value.
func Encode(v any) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, handle())
	if err := enc.Encode(v); err != nil {
		return nil, &EncodeError{Reason: "canonical cbor encode", Cause: err}
	}
	return out, nil
}

// Decode deserializes canonical bytes into v, which must be a pointer.
func Decode(data []byte, v any) error {
	dec := codec.NewDecoderBytes(data, handle())
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Reason: "canonical cbor decode", Cause: err}
	}
	return nil
}
