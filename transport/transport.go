// Package transport defines the sole boundary between the channels core
// and an append-only external store (spec.md §4.H, §6). The core never
// reaches out to a concrete ledger/transport client directly; every send
// and receive goes through this interface, so the same Author/Subscriber
// code runs over an in-memory mock, a local bbolt file, or a remote
// service fronted by gRPC (package grpctransport).
//
// Implementations must be safe for concurrent use by multiple owners
// (spec.md §5, "Shared-resource policy"): several user instances may share
// one Transport.
package transport

import (
	"context"

	"github.com/drand/channels/message"
)

// Transport is the transport-agnostic send/receive contract spec.md §6
// names: send, recv_message, recv_messages.
type Transport interface {
	// Send stores payload at link with at-least-once delivery semantics;
	// sending twice to the same link is idempotent. Every Send also makes
	// payload discoverable via RecvIndex under link.Address, which is how
	// multi-branch Sequence messages are found without a linear scan
	// (spec.md §4.F).
	Send(ctx context.Context, link message.Link, payload []byte) error

	// Recv fetches the bytes previously stored at link, or ErrNotFound.
	Recv(ctx context.Context, link message.Link) ([]byte, error)

	// RecvIndex fetches every payload ever Sent under addr, in send order.
	RecvIndex(ctx context.Context, addr message.Address) ([][]byte, error)
}
