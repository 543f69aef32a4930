// Package memtransport implements transport.Transport over a plain
// in-memory map, for tests and for single-process demos. It is modeled on
// the teacher's client/mock.Client: a small sync.Mutex-guarded struct with
// no persistence, returned as a ready-made transport.Transport rather than
// a richer client interface, since spec.md's transport boundary needs
// nothing more than send/recv/recv-index.
package memtransport

import (
	"context"
	"sync"

	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
)

// Transport is an in-memory transport.Transport implementation.
//
//nolint:gocritic // a mutex-guarded struct is the teacher's convention here
type Transport struct {
	mu      sync.Mutex
	byLink  map[string][]byte
	byIndex map[string][][]byte
}

var _ transport.Transport = (*Transport)(nil)

// New returns an empty in-memory transport.
func New() *Transport {
	return &Transport{
		byLink:  make(map[string][]byte),
		byIndex: make(map[string][][]byte),
	}
}

func linkKey(link message.Link) string {
	return message.FormatLink(link)
}

func indexKey(addr message.Address) string {
	return addr.String()
}

// Send stores payload under link and appends it to link.Address's index.
// Sending the same link twice overwrites the by-link entry (idempotent per
// spec.md §6) but the index retains one entry per Send call, matching a
// real append-only ledger's behavior of recording every write.
func (t *Transport) Send(_ context.Context, link message.Link, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := append([]byte(nil), payload...)
	t.byLink[linkKey(link)] = cp
	ik := indexKey(link.Address)
	t.byIndex[ik] = append(t.byIndex[ik], cp)
	return nil
}

// Recv returns the payload stored at link, or transport.ErrNotFound.
func (t *Transport) Recv(_ context.Context, link message.Link) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.byLink[linkKey(link)]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// RecvIndex returns every payload ever Sent under addr, in send order.
func (t *Transport) RecvIndex(_ context.Context, addr message.Address) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.byIndex[indexKey(addr)]
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = append([]byte(nil), e...)
	}
	return out, nil
}
