package spongos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbsorbSqueezeDeterministic(t *testing.T) {
	s1 := New(DefaultRate)
	s1.Absorb([]byte("hello channel"))
	s1.Commit()
	tag1 := s1.Squeeze(32)

	s2 := New(DefaultRate)
	s2.Absorb([]byte("hello channel"))
	s2.Commit()
	tag2 := s2.Squeeze(32)

	require.Equal(t, tag1, tag2, "identical operation sequences must produce identical tags")
}

func TestSqueezeAfterCommitDependsOnInput(t *testing.T) {
	s := New(DefaultRate)
	s.Absorb([]byte("ab"))
	s.Commit()
	out := s.Squeeze(16)
	require.NotEqual(t, make([]byte, 16), out)
}

func TestAbsorbOrderMatters(t *testing.T) {
	s1 := New(DefaultRate)
	s1.Absorb([]byte("ab"))
	s1.Commit()
	tag1 := s1.Squeeze(16)

	s2 := New(DefaultRate)
	s2.Absorb([]byte("ba"))
	s2.Commit()
	tag2 := s2.Squeeze(16)

	require.NotEqual(t, tag1, tag2)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, 0123456789")

	enc := New(DefaultRate)
	enc.Absorb([]byte("shared-key-material"))
	enc.Commit()
	cipher := enc.Encrypt(plain)

	dec := New(DefaultRate)
	dec.Absorb([]byte("shared-key-material"))
	dec.Commit()
	recovered := dec.Decrypt(cipher)

	require.Equal(t, plain, recovered)
}

func TestEncryptDecryptAcrossBlockBoundary(t *testing.T) {
	plain := make([]byte, DefaultRate*3+17)
	for i := range plain {
		plain[i] = byte(i)
	}

	enc := New(DefaultRate)
	cipher := enc.Encrypt(plain)

	dec := New(DefaultRate)
	recovered := dec.Decrypt(cipher)

	require.Equal(t, plain, recovered)
}

func TestCommitIsDeterministicCheckpoint(t *testing.T) {
	a := New(DefaultRate)
	a.Absorb([]byte("xy"))
	a.Commit()
	tagA := a.Squeeze(8)

	b := New(DefaultRate)
	// absorb the same bytes split across two calls instead of one.
	b.Absorb([]byte("x"))
	b.Absorb([]byte("y"))
	b2 := New(DefaultRate)
	b2.Absorb([]byte("xy"))
	b2.Commit()
	tagB2 := b2.Squeeze(8)
	b.Commit()
	tagB := b.Squeeze(8)

	require.Equal(t, tagA, tagB)
	require.Equal(t, tagA, tagB2)
}

func TestForkIsIndependent(t *testing.T) {
	base := New(DefaultRate)
	base.Absorb([]byte("branch-root"))
	base.Commit()

	fork1 := base.Fork()
	fork2 := base.Fork()

	fork1.Absorb([]byte("recipient-1"))
	fork1.Commit()
	fork2.Absorb([]byte("recipient-2"))
	fork2.Commit()

	tag1 := fork1.Squeeze(16)
	tag2 := fork2.Squeeze(16)
	require.NotEqual(t, tag1, tag2)

	// base itself must be untouched by either fork.
	baseTag := base.Squeeze(16)
	require.NotEqual(t, baseTag, tag1)
	require.NotEqual(t, baseTag, tag2)
}

func TestJoinConvergesForksBackIntoSharedTranscript(t *testing.T) {
	root := New(DefaultRate)
	root.Absorb([]byte("root"))
	root.Commit()

	senderFork := root.Fork()
	senderFork.Absorb([]byte("payload"))
	senderFork.Commit()

	senderMain := root.Fork()
	senderMain.Join(senderFork)

	receiverFork := root.Fork()
	receiverFork.Absorb([]byte("payload"))
	receiverFork.Commit()

	receiverMain := root.Fork()
	receiverMain.Join(receiverFork)

	require.Equal(t, senderMain.Squeeze(32), receiverMain.Squeeze(32))
}

func TestMarshalBinaryRoundTrip(t *testing.T) {
	s := New(DefaultRate)
	s.Absorb([]byte("checkpointed transcript"))
	s.Commit()
	s.Absorb([]byte("partially filled block")) // leave the buffer dirty

	dump, err := s.MarshalBinary()
	require.NoError(t, err)

	restored := new(Spongos)
	require.NoError(t, restored.UnmarshalBinary(dump))

	s.Commit()
	restored.Commit()
	require.Equal(t, s.Squeeze(32), restored.Squeeze(32))
}

func TestUnmarshalBinaryRejectsGarbage(t *testing.T) {
	var s Spongos
	require.Error(t, s.UnmarshalBinary([]byte("too short")))

	bad := make([]byte, marshaledSize)
	bad[0] = 0 // zero rate
	require.Error(t, s.UnmarshalBinary(bad))
}

func TestSqueezeZeroesOuterBytes(t *testing.T) {
	s := New(DefaultRate)
	s.Absorb([]byte("abc"))
	s.Commit()
	_ = s.Squeeze(s.rate)
	for _, b := range s.buf {
		require.EqualValues(t, 0, b)
	}
}
