package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdentityIsDeterministic(t *testing.T) {
	seed := [32]byte{1, 2, 3}
	a := NewIdentity(seed)
	b := NewIdentity(seed)

	require.Equal(t, a.Ed25519, b.Ed25519)
	require.Equal(t, a.X25519, b.X25519)
	require.Equal(t, a.Public.X25519PK, b.Public.X25519PK)
	require.True(t, a.Public.Equal(&b.Public))
}

func TestDifferentSeedsDifferentIdentities(t *testing.T) {
	a := NewIdentity([32]byte{1})
	b := NewIdentity([32]byte{2})
	require.False(t, a.Public.Equal(&b.Public))
	require.NotEqual(t, a.X25519, b.X25519)
}

func TestSignVerify(t *testing.T) {
	id := NewIdentity([32]byte{9, 9, 9})
	msg := []byte("a committed digest")
	sig := id.Sign(msg)
	require.True(t, id.Public.Verify(msg, sig))
	require.False(t, id.Public.Verify([]byte("tampered"), sig))
}

func TestPublicIdentityTOMLRoundTrip(t *testing.T) {
	id := NewIdentity([32]byte{7})
	toml := id.Public.TOML()

	var p2 PublicIdentity
	require.NoError(t, p2.FromTOML(toml))
	require.True(t, id.Public.Equal(&p2))
	require.Equal(t, id.Public.X25519PK, p2.X25519PK)
}

func TestPrivateIdentityTOMLRoundTrip(t *testing.T) {
	id := NewIdentity([32]byte{42})
	toml := id.TOML()

	rebuilt, err := FromTOML(toml)
	require.NoError(t, err)
	require.Equal(t, id.Ed25519, rebuilt.Ed25519)
	require.Equal(t, id.X25519, rebuilt.X25519)
}

func TestParsePublicIdentityRejectsBadLength(t *testing.T) {
	_, err := ParsePublicIdentity([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadPublicKey)
}
