package ddml_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/curve25519"

	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/spongos"
)

// schema is a representative DDML program: absorb a public field, mask a
// private field, commit, then squeeze an 8-byte tag. It is written once and
// driven through a Context in whichever mode the caller constructs.
func schema(c *ddml.Context, public *[]byte, secret *[]byte, tag *[]byte) error {
	if err := c.AbsorbSizedBytes(public); err != nil {
		return err
	}
	if err := c.MaskSizedBytes(secret); err != nil {
		return err
	}
	c.Commit()
	return c.Squeeze(8, tag)
}

func TestContextWrapUnwrapRoundTrip(t *testing.T) {
	public := []byte("channel-header")
	secret := []byte("top secret payload")

	sWrap := spongos.New(spongos.DefaultRate)
	wrap := ddml.NewWrapContext(sWrap)
	var tag []byte
	require.NoError(t, schema(wrap, &public, &secret, &tag))

	wire := wrap.Bytes()
	require.NotEmpty(t, wire)

	sUnwrap := spongos.New(spongos.DefaultRate)
	unwrap := ddml.NewUnwrapContext(sUnwrap, wire)
	var gotPublic, gotSecret, gotTag []byte
	require.NoError(t, schema(unwrap, &gotPublic, &gotSecret, &gotTag))

	require.Equal(t, public, gotPublic)
	require.Equal(t, secret, gotSecret)
	require.Empty(t, unwrap.Remaining())
}

func TestContextUnwrapDetectsTampering(t *testing.T) {
	public := []byte("channel-header")
	secret := []byte("top secret payload")

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	var tag []byte
	require.NoError(t, schema(wrap, &public, &secret, &tag))

	wire := append([]byte(nil), wrap.Bytes()...)
	wire[len(wire)-1] ^= 0xFF

	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	var gotPublic, gotSecret, gotTag []byte
	err := schema(unwrap, &gotPublic, &gotSecret, &gotTag)
	require.ErrorIs(t, err, ddml.ErrDecode)
}

func TestContextSizeofMatchesWrapLength(t *testing.T) {
	public := []byte("channel-header")
	secret := []byte("top secret payload")

	sizeCtx := ddml.NewSizeofContext()
	var tag []byte
	require.NoError(t, schema(sizeCtx, &public, &secret, &tag))

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, schema(wrap, &public, &secret, &tag))

	require.Equal(t, sizeCtx.Size(), len(wrap.Bytes()))
}

func TestContextMssigRoundTrip(t *testing.T) {
	var seed [32]byte
	copy(seed[:], []byte("mssig-test-seed-aaaaaaaaaaaaaaaa"))
	priv := key.NewIdentity(seed)

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	msg := []byte("signed body")
	require.NoError(t, wrap.AbsorbSizedBytes(&msg))
	require.NoError(t, wrap.MssigWrap(priv))

	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	var gotMsg []byte
	require.NoError(t, unwrap.AbsorbSizedBytes(&gotMsg))
	require.NoError(t, unwrap.MssigUnwrap(&priv.Public))
	require.Equal(t, msg, gotMsg)
}

func TestContextMssigRejectsWrongSigner(t *testing.T) {
	var seedA, seedB [32]byte
	copy(seedA[:], []byte("mssig-signer-a-aaaaaaaaaaaaaaaaa"))
	copy(seedB[:], []byte("mssig-signer-b-bbbbbbbbbbbbbbbbb"))
	privA := key.NewIdentity(seedA)
	privB := key.NewIdentity(seedB)

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	msg := []byte("signed body")
	require.NoError(t, wrap.AbsorbSizedBytes(&msg))
	require.NoError(t, wrap.MssigWrap(privA))

	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	var gotMsg []byte
	require.NoError(t, unwrap.AbsorbSizedBytes(&gotMsg))
	err := unwrap.MssigUnwrap(&privB.Public)
	require.ErrorIs(t, err, ddml.ErrSignature)
}

func TestContextX25519SharedSecretMatches(t *testing.T) {
	var seedRecipient [32]byte
	copy(seedRecipient[:], []byte("x25519-recipient-seed-aaaaaaaaa"))
	recipient := key.NewIdentity(seedRecipient)

	var ephPriv, ephPub [32]byte
	copy(ephPriv[:], []byte("ephemeral-scalar-bbbbbbbbbbbbbbb"))
	ephPub = derivePublic(t, ephPriv)

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, wrap.X25519Wrap(ephPriv, ephPub, recipient.Public.X25519PK))
	wrap.Commit()
	wrapTag := wrap.Bytes()

	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrapTag)
	gotEphPub, err := unwrap.X25519Unwrap(recipient.X25519)
	require.NoError(t, err)
	require.Equal(t, ephPub, gotEphPub)
	unwrap.Commit()

	// Both sides absorbed the same shared secret, so their transcripts agree.
	require.Equal(t, wrap.Spongos().Squeeze(16), unwrap.Spongos().Squeeze(16))
}

func derivePublic(t *testing.T, priv [32]byte) [32]byte {
	t.Helper()
	var out [32]byte
	pk, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	require.NoError(t, err)
	copy(out[:], pk)
	return out
}
