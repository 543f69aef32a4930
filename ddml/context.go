// Package ddml implements the typed data-definition/manipulation language
// (DDML) that every channels message schema is written against: a small
// set of field kinds (Absorb, Mask, Skip, Commit, Squeeze, Mssig, X25519,
// Fork, Repeated, Oneof per spec.md §4.B) each of which both serializes a
// value to/from a byte stream and drives a spongos.Spongos in lock-step, so
// that a sender and a receiver executing the same schema end up with
// identical spongos state.
//
// A single schema function is written once and is run through a Context in
// one of three modes (ModeSizeof, ModeWrap, ModeUnwrap); the content
// package's message schemas are exactly such functions.
package ddml

import (
	"bytes"
	"encoding/binary"

	"github.com/drand/channels/spongos"
)

// Mode selects which of the three DDML passes a Context performs.
type Mode int

const (
	// ModeSizeof computes the exact serialized length of a schema without
	// mutating any spongos.
	ModeSizeof Mode = iota
	// ModeWrap serializes into an output buffer while mutating Spongos.
	ModeWrap
	// ModeUnwrap parses from an input buffer while mutating Spongos.
	ModeUnwrap
)

// Context drives one DDML pass. Every field-kind method takes a pointer to
// the Go value it reads (Wrap) or fills (Unwrap); in ModeSizeof only the
// value's size is consulted.
//
// buf, in and size are held by pointer/reference so that a Fork (used by
// Keyload's per-recipient branches) shares the same underlying wire
// position and size accumulator as its parent: forking only isolates the
// spongos, never the serialized stream.
type Context struct {
	mode    Mode
	spongos *spongos.Spongos
	buf     *bytes.Buffer
	in      *[]byte
	size    *int
}

// NewSizeofContext returns a Context that only computes serialized length.
func NewSizeofContext() *Context {
	n := 0
	return &Context{mode: ModeSizeof, size: &n}
}

// NewWrapContext returns a Context that serializes into a fresh buffer
// while driving s.
func NewWrapContext(s *spongos.Spongos) *Context {
	return &Context{mode: ModeWrap, spongos: s, buf: new(bytes.Buffer)}
}

// NewUnwrapContext returns a Context that parses from in while driving s.
func NewUnwrapContext(s *spongos.Spongos, in []byte) *Context {
	cp := append([]byte(nil), in...)
	return &Context{mode: ModeUnwrap, spongos: s, in: &cp}
}

// Mode reports which pass this Context performs.
func (c *Context) Mode() Mode { return c.mode }

// Spongos returns the spongos this Context is driving (nil in ModeSizeof).
// Callers use it to snapshot a per-message checkpoint once a Wrap/Unwrap
// pass completes, per spec.md §9's committed-tag-checkpoint design note.
func (c *Context) Spongos() *spongos.Spongos { return c.spongos }

// Size returns the accumulated size; valid only in ModeSizeof.
func (c *Context) Size() int {
	if c.size == nil {
		return 0
	}
	return *c.size
}

// Bytes returns the serialized output; valid only in ModeWrap.
func (c *Context) Bytes() []byte {
	if c.buf == nil {
		return nil
	}
	return c.buf.Bytes()
}

// Remaining returns the not-yet-consumed input; valid only in ModeUnwrap.
func (c *Context) Remaining() []byte {
	if c.in == nil {
		return nil
	}
	return *c.in
}

// Fork returns a child Context that shares this Context's wire position
// (buf/in/size) but operates on an independent, forked spongos. Per
// spec.md §4.B's Fork field kind, the parent should Join the child's
// spongos back in once the forked body is done (see Join).
func (c *Context) Fork() *Context {
	child := &Context{mode: c.mode, buf: c.buf, in: c.in, size: c.size}
	if c.spongos != nil {
		child.spongos = c.spongos.Fork()
	}
	return child
}

// Join merges a forked child's spongos transcript back into the parent, per
// spec.md §4.A's fork/join pair.
func (c *Context) Join(child *Context) {
	if c.spongos != nil && child.spongos != nil {
		c.spongos.Join(child.spongos)
	}
}

// AbsorbSpan runs body, then absorbs into this Context's spongos the wire
// bytes body produced (Wrap) or consumed (Unwrap). It is how a schema
// binds bytes emitted through a forked scratch sponge into the main
// transcript without replaying their sponge effects: the fork keeps its
// secret-derived state to itself, while the main transcript still
// authenticates the public wire form of everything the fork put there.
func (c *Context) AbsorbSpan(body func() error) error {
	var startLen int
	var before []byte
	switch c.mode {
	case ModeWrap:
		startLen = c.buf.Len()
	case ModeUnwrap:
		before = *c.in
	}
	if err := body(); err != nil {
		return err
	}
	if c.spongos == nil {
		return nil
	}
	switch c.mode {
	case ModeWrap:
		c.spongos.Absorb(c.buf.Bytes()[startLen:])
	case ModeUnwrap:
		c.spongos.Absorb(before[:len(before)-len(*c.in)])
	}
	return nil
}

// Repeated runs body n times, the Repeated field kind of spec.md §4.B.
func (c *Context) Repeated(n int, body func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := body(i); err != nil {
			return err
		}
	}
	return nil
}

// ---- Skip (no sponge effect) ----

// Byte reads/writes a single byte with no sponge effect (the Skip field
// kind). Used for plaintext framing such as length prefixes.
func (c *Context) Byte(p *byte) error {
	switch c.mode {
	case ModeSizeof:
		*c.size++
	case ModeWrap:
		c.buf.WriteByte(*p)
	case ModeUnwrap:
		if len(*c.in) < 1 {
			return ErrDecode
		}
		*p = (*c.in)[0]
		*c.in = (*c.in)[1:]
	}
	return nil
}

// Uint32 reads/writes a big-endian u32 with no sponge effect.
func (c *Context) Uint32(p *uint32) error {
	switch c.mode {
	case ModeSizeof:
		*c.size += 4
	case ModeWrap:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], *p)
		c.buf.Write(tmp[:])
	case ModeUnwrap:
		if len(*c.in) < 4 {
			return ErrDecode
		}
		*p = binary.BigEndian.Uint32((*c.in)[:4])
		*c.in = (*c.in)[4:]
	}
	return nil
}

// FixedBytes reads/writes exactly n bytes with no sponge effect. On Wrap,
// *p must already have length n.
func (c *Context) FixedBytes(p *[]byte, n int) error {
	switch c.mode {
	case ModeSizeof:
		*c.size += n
	case ModeWrap:
		if len(*p) != n {
			return ErrDecode
		}
		c.buf.Write(*p)
	case ModeUnwrap:
		if len(*c.in) < n {
			return ErrDecode
		}
		*p = append([]byte(nil), (*c.in)[:n]...)
		*c.in = (*c.in)[n:]
	}
	return nil
}

// SizedBytes reads/writes a u32-length-prefixed byte string, neither part
// absorbed (the Skip field kind's variable-length form, `Bytes` in
// spec.md §4.B's primitive-type table).
func (c *Context) SizedBytes(p *[]byte) error {
	var n uint32
	if c.mode == ModeWrap || c.mode == ModeSizeof {
		n = uint32(len(*p))
	}
	if err := c.Uint32(&n); err != nil {
		return err
	}
	return c.FixedBytes(p, int(n))
}

// ---- Absorb ----

// AbsorbByte reads/writes a single byte and absorbs it into the spongos
// (the Absorb field kind).
func (c *Context) AbsorbByte(p *byte) error {
	if err := c.Byte(p); err != nil {
		return err
	}
	if c.spongos != nil {
		c.spongos.Absorb([]byte{*p})
	}
	return nil
}

// AbsorbUint32 reads/writes a big-endian u32 and absorbs it.
func (c *Context) AbsorbUint32(p *uint32) error {
	if err := c.Uint32(p); err != nil {
		return err
	}
	if c.spongos != nil {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], *p)
		c.spongos.Absorb(tmp[:])
	}
	return nil
}

// AbsorbFixedBytes reads/writes exactly n bytes and absorbs them.
func (c *Context) AbsorbFixedBytes(p *[]byte, n int) error {
	if err := c.FixedBytes(p, n); err != nil {
		return err
	}
	if c.spongos != nil {
		c.spongos.Absorb(*p)
	}
	return nil
}

// AbsorbSizedBytes reads/writes a length-prefixed byte string and absorbs
// both the length and the payload.
func (c *Context) AbsorbSizedBytes(p *[]byte) error {
	var n uint32
	if c.mode == ModeWrap || c.mode == ModeSizeof {
		n = uint32(len(*p))
	}
	if err := c.AbsorbUint32(&n); err != nil {
		return err
	}
	return c.AbsorbFixedBytes(p, int(n))
}

// ---- Mask ----

// MaskFixedBytes reads/writes exactly n bytes of ciphertext on the wire,
// encrypting (Wrap) or decrypting (Unwrap) them through the spongos (the
// Mask field kind). In ModeSizeof it behaves like FixedBytes: masking does
// not change the wire length.
func (c *Context) MaskFixedBytes(p *[]byte, n int) error {
	switch c.mode {
	case ModeSizeof:
		*c.size += n
	case ModeWrap:
		if len(*p) != n {
			return ErrDecode
		}
		cipher := c.spongos.Encrypt(*p)
		c.buf.Write(cipher)
	case ModeUnwrap:
		if len(*c.in) < n {
			return ErrDecode
		}
		cipher := (*c.in)[:n]
		*c.in = (*c.in)[n:]
		*p = c.spongos.Decrypt(cipher)
	}
	return nil
}

// MaskSizedBytes reads/writes a u32 plaintext-length prefix (Skip kind, not
// absorbed) followed by n bytes of masked payload (Mask kind). The length
// itself is sent in the clear because a receiver without the session key
// can neither mask it out of the stream, so it must frame it some other
// way: it is still authenticated implicitly, because if it is wrong the
// subsequent Mssig/Squeeze tag will not verify.
func (c *Context) MaskSizedBytes(p *[]byte) error {
	var n uint32
	if c.mode == ModeWrap || c.mode == ModeSizeof {
		n = uint32(len(*p))
	}
	if err := c.Uint32(&n); err != nil {
		return err
	}
	return c.MaskFixedBytes(p, int(n))
}

// ---- Commit / Squeeze ----

// AbsorbSecret mixes secret material into the driven spongos without
// placing anything on the wire. It is the primitive the X25519 field kind
// uses to fold in a Diffie-Hellman shared secret, and Keyload reuses it to
// fold in a pre-shared key the same way ("Mask session_key using a
// PSK-initialized sponge").
func (c *Context) AbsorbSecret(secret []byte) {
	if c.spongos != nil {
		c.spongos.Absorb(secret)
	}
}

// Commit finalizes the current block on the driven spongos (the Commit
// field kind). It is a no-op in ModeSizeof.
func (c *Context) Commit() {
	if c.spongos != nil {
		c.spongos.Commit()
	}
}

// Squeeze emits (Wrap) or verifies (Unwrap) an n-byte tag derived from the
// spongos state (the Squeeze field kind). On Unwrap, a mismatched tag
// yields ErrDecode and *out is left as the value read from the wire so
// callers can log what was tampered with.
func (c *Context) Squeeze(n int, out *[]byte) error {
	switch c.mode {
	case ModeSizeof:
		*c.size += n
		return nil
	case ModeWrap:
		tag := c.spongos.Squeeze(n)
		c.buf.Write(tag)
		*out = tag
		return nil
	case ModeUnwrap:
		if len(*c.in) < n {
			return ErrDecode
		}
		wireTag := (*c.in)[:n]
		*c.in = (*c.in)[n:]
		expect := c.spongos.Squeeze(n)
		*out = wireTag
		if !bytes.Equal(wireTag, expect) {
			return ErrDecode
		}
		return nil
	}
	return nil
}
