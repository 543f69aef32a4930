package ddml

import "errors"

// ErrDecode is returned whenever an Unwrap pass diverges from the schema
// it is executing: truncated input, a length that does not fit the
// remaining bytes, or (for Oneof) a tag with no matching variant. Per
// spec.md §4.B, the caller must treat the whole message as a rejected
// decode; the spongos state that produced it must be discarded, not reused.
var ErrDecode = errors.New("ddml: decode diverged from schema")

// ErrSignature is returned by MssigUnwrap when the ed25519 signature over
// the squeezed digest does not verify.
var ErrSignature = errors.New("ddml: signature verification failed")

// ErrWrongMode is returned when a Context method is called in a pass that
// does not support it (e.g. calling an Unwrap-only accessor on a Wrap
// context). It indicates a programming error in a content schema, not a
// malformed message.
var ErrWrongMode = errors.New("ddml: method not valid in this context's mode")
