// Package content implements the per-kind DDML schemas of spec.md §4.E:
// Announcement, Subscribe, Unsubscribe, Keyload, SignedPacket,
// TaggedPacket and Sequence. Each type's Wrap/Unwrap pair is a schema
// function in the sense of package ddml's doc comment: it is run once to
// serialize (Wrap) and once to parse (Unwrap), driving the same field-kind
// operations on the message's spongos both times.
package content

import "errors"

// ErrNotPermitted is returned by Keyload.Unwrap when none of the
// recipient slots could be unlocked with the caller's own X25519 key or
// any PSK in its store (spec.md §7, NotPermitted).
var ErrNotPermitted = errors.New("content: not permitted for this keyload")

// ErrEmptyPublisherKey is returned by Keyload.Wrap for a recipient whose
// Kind is neither RecipientPsk nor RecipientSubscriber, a BadArgument case
// per spec.md §7.
var ErrEmptyPublisherKey = errors.New("content: publisher key must not be empty")
