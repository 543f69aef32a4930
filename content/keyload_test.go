package content_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/spongos"
)

func wrapKeyload(t *testing.T, author *key.PrivateIdentity, kl *content.Keyload, recipients []content.KeyloadRecipient, psks *key.PskStore) []byte {
	t.Helper()
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, kl.Wrap(wrap, author, recipients, psks))
	return wrap.Bytes()
}

func TestKeyloadSubscriberRecipientRoundTrip(t *testing.T) {
	author := key.NewIdentity(seedOf(t, "keyload-author-aaaaaaaaaaaaaaaaaaaa"))
	sub := key.NewIdentity(seedOf(t, "keyload-sub-bbbbbbbbbbbbbbbbbbbbbbbb"))

	var ephPriv, ephPub [32]byte
	copy(ephPriv[:], []byte("keyload-ephemeral-priv-0000000000"))
	ephPub = x25519Pub(t, ephPriv)

	var sessionKey [32]byte
	copy(sessionKey[:], []byte("session-key-for-the-branch-aaaaaa"))

	kl := &content.Keyload{Nonce: nonceOf(t, "nonce-one"), SessionKey: sessionKey}
	recipients := []content.KeyloadRecipient{{
		Kind:          content.RecipientSubscriber,
		SubscriberPub: &sub.Public,
		EphemeralPriv: ephPriv,
		EphemeralPub:  ephPub,
	}}
	wire := wrapKeyload(t, author, kl, recipients, key.NewPskStore())

	var got content.Keyload
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	id := content.KeyloadIdentity{X25519: sub.X25519, Psks: key.NewPskStore()}
	require.NoError(t, got.Unwrap(unwrap, &author.Public, id))
	require.Equal(t, sessionKey, got.SessionKey)
	require.Equal(t, kl.Nonce, got.Nonce)
}

func TestKeyloadPskRecipientRoundTrip(t *testing.T) {
	author := key.NewIdentity(seedOf(t, "keyload-author-cccccccccccccccccccc"))

	var psk key.Psk
	copy(psk[:], []byte("a-32-byte-pre-shared-secret-aaaa"))
	pskID := key.DerivePskID(psk)

	authorPsks := key.NewPskStore()
	authorPsks.Add(psk)

	var sessionKey [32]byte
	copy(sessionKey[:], []byte("session-key-for-the-branch-bbbbbb"))

	kl := &content.Keyload{Nonce: nonceOf(t, "nonce-two"), SessionKey: sessionKey}
	recipients := []content.KeyloadRecipient{{Kind: content.RecipientPsk, PskID: pskID}}
	wire := wrapKeyload(t, author, kl, recipients, authorPsks)

	recipientPsks := key.NewPskStore()
	recipientPsks.Add(psk)

	var got content.Keyload
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	id := content.KeyloadIdentity{Psks: recipientPsks}
	require.NoError(t, got.Unwrap(unwrap, &author.Public, id))
	require.Equal(t, sessionKey, got.SessionKey)
}

func TestKeyloadUnknownRecipientIsNotPermitted(t *testing.T) {
	author := key.NewIdentity(seedOf(t, "keyload-author-dddddddddddddddddddd"))
	sub := key.NewIdentity(seedOf(t, "keyload-sub-eeeeeeeeeeeeeeeeeeeeeeee"))
	outsider := key.NewIdentity(seedOf(t, "keyload-outsider-ffffffffffffffffff"))

	var ephPriv, ephPub [32]byte
	copy(ephPriv[:], []byte("keyload-ephemeral-priv-1111111111"))
	ephPub = x25519Pub(t, ephPriv)

	var sessionKey [32]byte
	copy(sessionKey[:], []byte("session-key-for-the-branch-cccccc"))

	kl := &content.Keyload{Nonce: nonceOf(t, "nonce-three"), SessionKey: sessionKey}
	recipients := []content.KeyloadRecipient{{
		Kind:          content.RecipientSubscriber,
		SubscriberPub: &sub.Public,
		EphemeralPriv: ephPriv,
		EphemeralPub:  ephPub,
	}}
	wire := wrapKeyload(t, author, kl, recipients, key.NewPskStore())

	var got content.Keyload
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	id := content.KeyloadIdentity{X25519: outsider.X25519, Psks: key.NewPskStore()}
	err := got.Unwrap(unwrap, &author.Public, id)
	require.ErrorIs(t, err, content.ErrNotPermitted)
	require.Equal(t, [32]byte{}, got.SessionKey)
}

func nonceOf(t *testing.T, s string) [16]byte {
	t.Helper()
	var out [16]byte
	copy(out[:], s)
	return out
}

func x25519Pub(t *testing.T, priv [32]byte) [32]byte {
	t.Helper()
	pk, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)
	var out [32]byte
	copy(out[:], pk)
	return out
}
