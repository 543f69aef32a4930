package content

import (
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
)

// RecipientKind discriminates a Keyload recipient slot's Oneof variant
// (spec.md §4.E): either a holder of a pre-shared key, or a subscriber
// reached by X25519.
type RecipientKind byte

const (
	RecipientPsk RecipientKind = iota
	RecipientSubscriber
)

// checkTagSize is the length of the per-slot tag Wrap/Unwrap squeeze from
// the scratch sponge after masking the session key. It lets Unwrap tell
// whether it guessed the right secret for a given slot without needing the
// rest of the message to decode first.
const checkTagSize = 8

// KeyloadRecipient describes one slot of a Keyload's recipient list on
// Wrap. Exactly one of PskID or (SubscriberPub, EphemeralPriv/Pub) is
// meaningful, selected by Kind.
type KeyloadRecipient struct {
	Kind          RecipientKind
	PskID         key.PskID
	SubscriberPub *key.PublicIdentity
	EphemeralPriv [32]byte
	EphemeralPub  [32]byte
}

// Keyload establishes a session key for a branch and enumerates who can
// reconstruct it (spec.md §4.E). SessionKey must be set by the caller
// before Wrap and is populated by Unwrap only when the local identity (an
// X25519 key or a PSK) matched one of the recipient slots; otherwise
// Unwrap returns ErrNotPermitted and SessionKey is left zeroed.
//
// Schema: Absorb nonce(16B); Absorb recipient_count(u32); then for each
// recipient, Fork { Oneof { Psk:
// Absorb PskId, Mask session_key under a sponge keyed by the PSK, Squeeze
// check-tag | Sub: X25519(sub_x25519), Mask session_key under the
// resulting shared-secret sponge, Squeeze check-tag } }; Commit;
// Mssig(author_ed25519).
//
// Per-recipient forks are deliberately never joined back into the message
// spongos: a recipient slot's mask key depends on a secret (a PSK or an
// ECDH shared secret) that only its intended holder knows, so folding
// every slot's fork into the shared transcript would make the final
// Commit/Mssig unreproducible by anyone not privy to every other
// recipient's secret — including the Author's own later messages on this
// branch. The fork is a disposable scratch sponge that derives the slot's
// mask keystream and, from the same keystream, a short check tag; a
// recipient who guesses the wrong secret for a slot gets a mismatching tag
// and moves on to the next slot rather than failing the whole message.
// Every public byte a slot puts on the wire (recipient tag, PskID or
// ephemeral public key, masked session key, check tag) is still absorbed
// into the main transcript — via AbsorbSpan for the scratch-emitted parts
// — so the author's final Mssig binds the complete wire form and any
// tamper fails signature verification rather than degrading into a silent
// NotPermitted.
type Keyload struct {
	Nonce      [16]byte
	SessionKey [32]byte
}

// Wrap serializes the keyload and signs it with the author's identity.
func (k *Keyload) Wrap(c *ddml.Context, priv *key.PrivateIdentity, recipients []KeyloadRecipient, psks *key.PskStore) error {
	nonce := k.Nonce[:]
	if err := c.AbsorbFixedBytes(&nonce, 16); err != nil {
		return err
	}
	count := uint32(len(recipients))
	if err := c.AbsorbUint32(&count); err != nil {
		return err
	}
	err := c.Repeated(len(recipients), func(i int) error {
		r := recipients[i]
		tag := byte(r.Kind)
		if err := c.AbsorbByte(&tag); err != nil {
			return err
		}
		scratch := c.Fork()
		switch r.Kind {
		case RecipientPsk:
			pskID := r.PskID[:]
			if err := c.AbsorbFixedBytes(&pskID, key.PskIDSize); err != nil {
				return err
			}
			psk, err := psks.Get(r.PskID)
			if err != nil {
				return err
			}
			scratch.AbsorbSecret(psk[:])
		case RecipientSubscriber:
		default:
			return ErrEmptyPublisherKey
		}
		return c.AbsorbSpan(func() error {
			if r.Kind == RecipientSubscriber {
				if err := scratch.X25519Wrap(r.EphemeralPriv, r.EphemeralPub, r.SubscriberPub.X25519PK); err != nil {
					return err
				}
			}
			scratch.Commit()
			sk := append([]byte(nil), k.SessionKey[:]...)
			if err := scratch.MaskFixedBytes(&sk, 32); err != nil {
				return err
			}
			scratch.Commit()
			var checkTag []byte
			return scratch.Squeeze(checkTagSize, &checkTag)
		})
	})
	if err != nil {
		return err
	}
	c.Commit()
	return c.MssigWrap(priv)
}

// KeyloadIdentity supplies the local material Unwrap uses to try to open
// each recipient slot: the subscriber's own X25519 private key (for
// RecipientSubscriber slots addressed to it) and its PSK store (for
// RecipientPsk slots).
type KeyloadIdentity struct {
	X25519 [32]byte
	Psks   *key.PskStore
}

// Unwrap parses and verifies the keyload, and attempts to recover the
// session key from each recipient slot using id. If no slot could be
// opened, it returns ErrNotPermitted and leaves k.SessionKey zeroed.
func (k *Keyload) Unwrap(c *ddml.Context, authorPub *key.PublicIdentity, id KeyloadIdentity) error {
	nonce := make([]byte, 0, 16)
	if err := c.AbsorbFixedBytes(&nonce, 16); err != nil {
		return err
	}
	copy(k.Nonce[:], nonce)

	var count uint32
	if err := c.AbsorbUint32(&count); err != nil {
		return err
	}

	found := false
	err := c.Repeated(int(count), func(i int) error {
		var tag byte
		if err := c.AbsorbByte(&tag); err != nil {
			return err
		}
		scratch := c.Fork()
		opened := false
		switch RecipientKind(tag) {
		case RecipientPsk:
			pskIDBuf := make([]byte, 0, key.PskIDSize)
			if err := c.AbsorbFixedBytes(&pskIDBuf, key.PskIDSize); err != nil {
				return err
			}
			var pskID key.PskID
			copy(pskID[:], pskIDBuf)
			if p, err := id.Psks.Get(pskID); err == nil {
				scratch.AbsorbSecret(p[:])
				opened = true
			}
		case RecipientSubscriber:
		default:
			return ddml.ErrDecode
		}

		var sk []byte
		var tagOK bool
		if err := c.AbsorbSpan(func() error {
			if RecipientKind(tag) == RecipientSubscriber {
				// An ECDH failure (a malformed ephemeral point) only closes
				// this slot; the slot's remaining wire bytes are still
				// consumed so the transcript stays aligned.
				if _, err := scratch.X25519Unwrap(id.X25519); err == nil {
					opened = true
				}
			}
			scratch.Commit()
			if err := scratch.MaskFixedBytes(&sk, 32); err != nil {
				return err
			}
			scratch.Commit()
			var checkTag []byte
			tagOK = scratch.Squeeze(checkTagSize, &checkTag) == nil
			return nil
		}); err != nil {
			return err
		}
		if tagOK && opened && !found {
			copy(k.SessionKey[:], sk)
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.Commit()
	if err := c.MssigUnwrap(authorPub); err != nil {
		return err
	}
	if !found {
		k.SessionKey = [32]byte{}
		return ErrNotPermitted
	}
	return nil
}
