// Package memkv is an in-process implementation of kvstore.Client for tests.
// It keeps a single versioned map guarded by a mutex and gives every
// transaction a snapshot read-set so Commit can detect the same kind of
// write-write conflict a real transactional store would reject.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/objvault/vaultcheck/kvstore"
)

type record struct {
	value   []byte
	version uint64
}

// Store is a mutex-guarded map backing a Client; range reads sort its keys.
// Create one with NewStore: the zero value has no map and is not usable.
type Store struct {
	mu      sync.Mutex
	data    map[string]record
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]record)}
}

// NewClient wraps store in the kvstore.Client interface.
func NewClient(store *Store) kvstore.Client {
	return &client{store: store}
}

type client struct {
	store *Store
}

func (c *client) CreateTxn(ctx context.Context) (kvstore.Transaction, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return &txn{
		store:    c.store,
		readVer:  c.store.version,
		reads:    make(map[string]uint64),
		writes:   make(map[string][]byte),
		deletes:  make(map[string]bool),
	}, nil
}

func (c *client) Close() error { return nil }

type txn struct {
	store   *Store
	readVer uint64
	reads   map[string]uint64 // key -> version observed at read time
	writes  map[string][]byte
	deletes map[string]bool
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := t.writes[k]; ok {
		return v, nil
	}
	if t.deletes[k] {
		return nil, kvstore.ErrKeyNotFound
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	rec, ok := t.store.data[k]
	if !ok {
		t.reads[k] = 0
		return nil, kvstore.ErrKeyNotFound
	}
	t.reads[k] = rec.version
	return append([]byte(nil), rec.value...), nil
}

func (t *txn) Put(key, value []byte) error {
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *txn) Delete(key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = true
	return nil
}

// Commit fails with a commit-conflict error (errConflict) if any key
// this transaction read or wrote has changed version since the read snapshot,
// the same compare-and-set semantics the checker's lease protocol depends on.
func (t *txn) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for k, seenVer := range t.reads {
		if rec, ok := t.store.data[k]; ok {
			if rec.version != seenVer {
				return errConflict
			}
		} else if seenVer != 0 {
			return errConflict
		}
	}
	for k := range t.writes {
		if rec, ok := t.store.data[k]; ok && rec.version > t.readVer {
			return errConflict
		}
	}
	for k := range t.deletes {
		if rec, ok := t.store.data[k]; ok && rec.version > t.readVer {
			return errConflict
		}
	}

	t.store.version++
	for k, v := range t.writes {
		t.store.data[k] = record{value: v, version: t.store.version}
	}
	for k := range t.deletes {
		delete(t.store.data, k)
	}
	return nil
}

var errConflict = commitConflictError{}

type commitConflictError struct{}

func (commitConflictError) Error() string { return "memkv: commit conflict" }

func (t *txn) FullRangeGet(ctx context.Context, begin, end []byte, prefetch bool) kvstore.RangeIterator {
	t.store.mu.Lock()
	keys := make([]string, 0, len(t.store.data))
	for k := range t.store.data {
		if bytes.Compare([]byte(k), begin) >= 0 && bytes.Compare([]byte(k), end) < 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2][]byte{[]byte(k), append([]byte(nil), t.store.data[k].value...)})
	}
	t.store.mu.Unlock()
	return &rangeIterator{pairs: pairs}
}

type rangeIterator struct {
	pairs [][2][]byte
	pos   int
}

func (r *rangeIterator) Next() (key, value []byte, ok bool) {
	if r.pos >= len(r.pairs) {
		return nil, nil, false
	}
	p := r.pairs[r.pos]
	r.pos++
	return p[0], p[1], true
}

func (r *rangeIterator) Valid() bool { return true }
