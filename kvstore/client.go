// Package kvstore defines the transactional KV contract the checker depends
// on: create_txn, get, full_range_get with post-iteration validity distinct
// from exhaustion. The production implementation (tikv_client.go, built with
// the "tikv" build tag) backs it with github.com/tikv/client-go/v2/txnkv, the
// same transactional KV client used for SeaweedFS's TiKV filer store
// (weed/filer/tikv).
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is the sentinel TXN_KEY_NOT_FOUND condition.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Client creates transactions against the authoritative KV store.
type Client interface {
	CreateTxn(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction is a single optimistic transaction. Get/Put/Delete buffer
// locally; Commit attempts the compare-and-set. A conflicting commit (the
// record changed since this transaction began) returns a non-nil error that
// is neither ErrKeyNotFound nor anything the caller should retry internally:
// CAS failures just drop the instance for this cycle.
type Transaction interface {
	// Get returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit(ctx context.Context) error
	// FullRangeGet returns a lazy iterator over [begin, end). When prefetch
	// is true the iterator fetches in batches ahead of consumption.
	FullRangeGet(ctx context.Context, begin, end []byte, prefetch bool) RangeIterator
}

// RangeIterator is a lazy, possibly paginated key/value sequence. Valid must
// be checked after Next returns ok=false: clean exhaustion and a mid-scan
// failure are both represented as ok=false, and are told apart by Valid.
type RangeIterator interface {
	Next() (key, value []byte, ok bool)
	Valid() bool
}
