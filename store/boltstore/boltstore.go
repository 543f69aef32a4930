// Package boltstore implements transport.Transport over an embedded
// go.etcd.io/bbolt database file, for local testing and for a durable
// message cache standing in for a real ledger client. It follows the
// teacher's chain/boltdb.BoltStore shape closely: a sync.Mutex-guarded
// struct wrapping a *bolt.DB, JSON-encoded records, one bucket per logical
// table, and a NewBoltStore(ctx, log, path, opts) constructor.
package boltstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
)

// FileName is the default database file name within the storage directory,
// mirroring the teacher's chain/boltdb.BoltFileName.
const FileName = "channels.db"

// OpenPerm is the permission used when creating a new database file,
// mirroring the teacher's chain/boltdb.BoltStoreOpenPerm.
const OpenPerm = 0o660

var (
	linkBucket  = []byte("by_link")
	indexBucket = []byte("by_index")
)

// Transport is a bbolt-backed transport.Transport. By-link records are
// stored directly under their link key; by-index records are stored as a
// JSON array of payloads per channel address, appended to on every Send,
// matching memtransport's semantics but durable across process restarts.
//
//nolint:gocritic // a mutex-guarded struct is the teacher's BoltStore convention
type Transport struct {
	sync.Mutex
	db  *bolt.DB
	log log.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New opens (creating if necessary) a bbolt database under folder and
// returns a ready transport.Transport, mirroring the teacher's
// NewBoltStore.
func New(_ context.Context, lg log.Logger, folder string, opts *bolt.Options) (*Transport, error) {
	if lg == nil {
		lg = log.DefaultLogger()
	}
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(folder, FileName)
	db, err := bolt.Open(dbPath, OpenPerm, opts)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(linkBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Transport{db: db, log: lg}, nil
}

// Close closes the underlying database file.
func (t *Transport) Close() error {
	return t.db.Close()
}

type indexRecord struct {
	Entries [][]byte
}

// Send stores payload under link and appends it to link.Address's index,
// matching memtransport.Transport.Send's semantics (idempotent by-link,
// append-only by-index).
func (t *Transport) Send(_ context.Context, link message.Link, payload []byte) error {
	t.Lock()
	defer t.Unlock()

	cp := append([]byte(nil), payload...)
	lk := []byte(message.FormatLink(link))
	ik := []byte(link.Address.String())

	return t.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(linkBucket).Put(lk, cp); err != nil {
			return err
		}

		ib := tx.Bucket(indexBucket)
		var rec indexRecord
		if existing := ib.Get(ik); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
		}
		rec.Entries = append(rec.Entries, cp)
		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return ib.Put(ik, buf)
	})
}

// Recv returns the payload stored at link, or transport.ErrNotFound.
func (t *Transport) Recv(_ context.Context, link message.Link) ([]byte, error) {
	t.Lock()
	defer t.Unlock()

	var out []byte
	err := t.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(linkBucket).Get([]byte(message.FormatLink(link)))
		if v == nil {
			return transport.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecvIndex returns every payload ever Sent under addr, in send order.
func (t *Transport) RecvIndex(_ context.Context, addr message.Address) ([][]byte, error) {
	t.Lock()
	defer t.Unlock()

	var rec indexRecord
	err := t.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(indexBucket).Get([]byte(addr.String()))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(rec.Entries))
	for i, e := range rec.Entries {
		out[i] = append([]byte(nil), e...)
	}
	return out, nil
}
