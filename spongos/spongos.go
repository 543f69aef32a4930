// Package spongos implements the sponge-based authenticated-encryption
// automaton that underlies the channels message codec. It wraps the
// Keccak-f[1600] permutation (keccakf.go) behind absorb/squeeze/encrypt/
// decrypt/commit/fork/join primitives, mirroring the structure of a
// classical sponge/duplex construction: a fixed 1600-bit state split into
// an "outer" (rate) region, which is ever observable through absorb and
// squeeze, and a hidden "inner" (capacity) region, which never is.
//
// The implementation is modeled on the Sponge type in
// coruus/go-sha3 (lane-based Keccak state, byte-buffer mirror of the outer
// region, permute-on-fill), extended with the encrypt/decrypt/commit/fork/
// join operations a duplex construction needs that a plain hash/XOF does
// not.
package spongos

import (
	"encoding/binary"
	"errors"
)

// StateSize is the width, in bytes, of the full Keccak-f[1600] state.
const StateSize = 200

// DefaultRate is the number of outer (rate) bytes absorbed/squeezed between
// permutations. 1088 bits, matching SHA3-256/SHAKE256-class parameters.
const DefaultRate = 136

// Spongos is a single mutable automaton instance. It is not safe for
// concurrent use; callers that need concurrent forks must call Fork.
type Spongos struct {
	a    [25]uint64
	rate int
	buf  []byte // mirror of the first `rate` bytes of a, valid between permutes
	pos  int    // bytes of buf already written/read since the last permute
}

// New returns a freshly initialized Spongos with the all-zero state and the
// given outer rate in bytes. A rate of 0 selects DefaultRate.
func New(rate int) *Spongos {
	if rate <= 0 {
		rate = DefaultRate
	}
	if rate > StateSize-8 {
		rate = StateSize - 8
	}
	s := &Spongos{rate: rate, buf: make([]byte, rate)}
	return s
}

// Rate returns the configured outer-region size in bytes.
func (s *Spongos) Rate() int { return s.rate }

func (s *Spongos) loadOuter() {
	lanes := s.rate / 8
	for i := 0; i < lanes; i++ {
		binary.LittleEndian.PutUint64(s.buf[i*8:], s.a[i])
	}
	if rem := s.rate % 8; rem != 0 {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], s.a[lanes])
		copy(s.buf[lanes*8:], tmp[:rem])
	}
}

func (s *Spongos) storeOuter() {
	lanes := s.rate / 8
	for i := 0; i < lanes; i++ {
		s.a[i] = binary.LittleEndian.Uint64(s.buf[i*8:])
	}
	if rem := s.rate % 8; rem != 0 {
		var tmp [8]byte
		copy(tmp[:rem], s.buf[lanes*8:])
		// preserve the high bytes of the partial lane already in state.
		var existing [8]byte
		binary.LittleEndian.PutUint64(existing[:], s.a[lanes])
		copy(existing[:rem], tmp[:rem])
		s.a[lanes] = binary.LittleEndian.Uint64(existing[:])
	}
}

// permute commits the current outer buffer into the state, applies
// Keccak-f[1600], and reloads the outer buffer from the new state.
func (s *Spongos) permute() {
	s.storeOuter()
	keccakF(&s.a)
	s.loadOuter()
	s.pos = 0
}

// Absorb mixes bytes into the outer region, XORing them into the running
// state. A full (or committed) outer buffer is permuted before more data is
// taken in.
func (s *Spongos) Absorb(data []byte) {
	for len(data) > 0 {
		if s.pos == s.rate {
			s.permute()
		}
		n := s.rate - s.pos
		if n > len(data) {
			n = len(data)
		}
		for i := 0; i < n; i++ {
			s.buf[s.pos+i] ^= data[i]
		}
		s.pos += n
		data = data[n:]
	}
}

// Squeeze emits n bytes derived from the outer region, re-permuting as
// needed. Outer bytes covered by a squeeze are zeroed immediately after
// being read out, separating squeezed output from subsequently absorbed
// data.
func (s *Spongos) Squeeze(n int) []byte {
	out := make([]byte, n)
	off := 0
	for off < n {
		if s.pos == s.rate {
			s.permute()
		}
		k := s.rate - s.pos
		if k > n-off {
			k = n - off
		}
		copy(out[off:off+k], s.buf[s.pos:s.pos+k])
		for i := 0; i < k; i++ {
			s.buf[s.pos+i] = 0
		}
		s.pos += k
		off += k
	}
	return out
}

// Encrypt XORs plain with the outer bytes to produce ciphertext, then
// overwrites the outer bytes with the plaintext so that subsequent state
// depends on what was actually sent, not only on what was there before.
func (s *Spongos) Encrypt(plain []byte) []byte {
	return s.crypt(plain, true)
}

// Decrypt is the inverse of Encrypt: it recovers the plaintext by XORing
// the ciphertext with the outer bytes, then overwrites the outer bytes with
// the recovered plaintext.
func (s *Spongos) Decrypt(cipher []byte) []byte {
	return s.crypt(cipher, false)
}

func (s *Spongos) crypt(in []byte, encrypting bool) []byte {
	out := make([]byte, len(in))
	off := 0
	for off < len(in) {
		if s.pos == s.rate {
			s.permute()
		}
		k := s.rate - s.pos
		if k > len(in)-off {
			k = len(in) - off
		}
		for i := 0; i < k; i++ {
			plainByte := in[off+i]
			if !encrypting {
				plainByte ^= s.buf[s.pos+i]
			}
			outByte := plainByte
			if encrypting {
				outByte = plainByte ^ s.buf[s.pos+i]
			}
			out[off+i] = outByte
			s.buf[s.pos+i] = plainByte
		}
		s.pos += k
		off += k
	}
	return out
}

// MaskEncrypt and MaskDecrypt are aliases for Encrypt and Decrypt, one for
// each side of the wire. They exist so DDML field documentation can speak
// of "mask" uniformly, as spec.md §4.B does.
func (s *Spongos) MaskEncrypt(plain []byte) []byte  { return s.Encrypt(plain) }
func (s *Spongos) MaskDecrypt(cipher []byte) []byte { return s.Decrypt(cipher) }

// Commit finalizes the current block: if the outer buffer holds dirty
// (partially written) bytes from an absorb/encrypt/decrypt, it permutes
// first. It then zeroes the outer region and marks the buffer exhausted,
// so whatever operation follows starts by permuting the committed state.
// The point right after a Commit is a clean checkpoint: two spongos that
// executed the same operations up to a Commit are in identical states,
// independent of exactly how full the buffer was when Commit was called,
// and output squeezed right after a Commit still depends, through the
// capacity, on everything absorbed before it.
func (s *Spongos) Commit() {
	if s.pos != 0 {
		s.permute()
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.storeOuter()
	s.pos = s.rate
}

// Fork returns an independent clone of the current state. The spongos
// should normally be Commit-ed first so the fork starts from a clean
// checkpoint; Fork does not do this implicitly because some callers
// (Repeated/Oneof bodies in ddml) fork mid-block by design.
func (s *Spongos) Fork() *Spongos {
	clone := &Spongos{rate: s.rate, pos: s.pos}
	clone.a = s.a
	clone.buf = make([]byte, len(s.buf))
	copy(clone.buf, s.buf)
	return clone
}

// Join absorbs the committed state of another Spongos into this one. The
// other spongos is not mutated. Per spec.md §4.A this is used to derive
// per-recipient sub-states back into a shared transcript after a Fork.
func (s *Spongos) Join(other *Spongos) {
	committed := other.Fork()
	committed.Commit()
	raw := make([]byte, StateSize)
	for i := 0; i < 25; i++ {
		binary.LittleEndian.PutUint64(raw[i*8:], committed.a[i])
	}
	s.Absorb(raw)
	s.Commit()
}

// Clone returns a deep copy of the Spongos; an alias for Fork kept for
// readability at call sites that are not conceptually "forking a branch".
func (s *Spongos) Clone() *Spongos { return s.Fork() }

// marshaledSize is the length of MarshalBinary's output: one byte each for
// rate and offset, plus the full state.
const marshaledSize = 2 + StateSize

// ErrBadState is returned by UnmarshalBinary for input that is not a
// MarshalBinary-produced dump.
var ErrBadState = errors.New("spongos: malformed serialized state")

// MarshalBinary serializes the automaton (rate, offset and full state) so a
// transcript checkpoint can survive a process restart. The dump contains
// the secret inner state; callers must only persist it encrypted (package
// user masks exported state under a password-derived key).
func (s *Spongos) MarshalBinary() ([]byte, error) {
	synced := s.Fork()
	synced.storeOuter()
	out := make([]byte, marshaledSize)
	out[0] = byte(s.rate)
	out[1] = byte(s.pos)
	for i := 0; i < 25; i++ {
		binary.LittleEndian.PutUint64(out[2+i*8:], synced.a[i])
	}
	return out, nil
}

// UnmarshalBinary reverses MarshalBinary.
func (s *Spongos) UnmarshalBinary(data []byte) error {
	if len(data) != marshaledSize {
		return ErrBadState
	}
	rate := int(data[0])
	pos := int(data[1])
	if rate <= 0 || rate > StateSize-8 || pos > rate {
		return ErrBadState
	}
	s.rate = rate
	s.pos = pos
	for i := 0; i < 25; i++ {
		s.a[i] = binary.LittleEndian.Uint64(data[2+i*8:])
	}
	s.buf = make([]byte, rate)
	s.loadOuter()
	return nil
}
