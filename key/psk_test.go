package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPskStoreAddGetRemove(t *testing.T) {
	store := NewPskStore()
	psk := Psk{0xAA, 0xAA, 0xAA}
	id := store.Add(psk)

	got, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, psk, got)

	store.Remove(id)
	_, err = store.Get(id)
	require.ErrorIs(t, err, ErrUnknownPsk)
}

func TestDerivePskIDIsDeterministic(t *testing.T) {
	psk := Psk{1, 2, 3}
	require.Equal(t, DerivePskID(psk), DerivePskID(psk))

	other := Psk{1, 2, 4}
	require.NotEqual(t, DerivePskID(psk), DerivePskID(other))
}
