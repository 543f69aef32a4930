package user

import "errors"

// Error kinds per spec.md §7. They are returned verbatim (not wrapped in a
// parallel hierarchy of custom types), matching the teacher's
// chain/errors/errors.go convention of exported sentinel errors compared
// with errors.Is.
var (
	// ErrNotRegistered is returned when a method that requires prior
	// announcement processing is called too early.
	ErrNotRegistered = errors.New("user: not registered (process the announcement first)")

	// ErrNotPermitted is returned when a keyload unwrap could not find a
	// recipient slot for the local identity. Not fatal for the channel:
	// subsequent messages on that branch will also be NotPermitted until a
	// new keyload grants access.
	ErrNotPermitted = errors.New("user: not permitted for this branch")

	// ErrDuplicateSequence is returned when advancing a cursor would
	// regress or repeat an existing sequence number, signalling a fork or
	// replay.
	ErrDuplicateSequence = errors.New("user: duplicate or regressing sequence number")

	// ErrDecryptError is returned by Import when the supplied password does
	// not recover the persisted state blob.
	ErrDecryptError = errors.New("user: wrong password for exported state")

	// ErrBadArgument is returned when a publisher's next seq_no would
	// overflow u32.
	ErrBadArgument = errors.New("user: bad argument")

	// ErrUnknownPredecessor is returned when a message names a
	// PreviousLink this user has no checkpoint for, so it cannot resume the
	// spongos transcript needed to decode. Per spec.md §9's design note,
	// the only way to process such a message is to sync forward from a
	// link this user does have a checkpoint for.
	ErrUnknownPredecessor = errors.New("user: no checkpoint for previous link")

	// ErrUnknownPublisher is returned when a message references a
	// publisher this user has no record of (a Keyload whose publisher is
	// not the channel's Author).
	ErrUnknownPublisher = errors.New("user: unknown publisher")

	// ErrUnsupportedChannelType is returned by NewAuthor/NewAuthorWithNonce
	// for SingleDepth, whose MsgId derivation spec.md §9 leaves as an explicit
	// open question pending reference vectors this pack does not have.
	ErrUnsupportedChannelType = errors.New("user: single-depth channels are not implemented (see DESIGN.md)")
)
