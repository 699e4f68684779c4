//go:build tikv

package kvstore

import (
	"context"

	"github.com/pingcap/errors"
	tikverr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/txnkv"

	"github.com/objvault/vaultcheck/glog"
)

// tikvClient backs Client with github.com/tikv/client-go/v2/txnkv, the
// transactional KV client SeaweedFS already depends on for its TiKV filer
// store (weed/filer/tikv/tikv_store_kv.go).
type tikvClient struct {
	inner *txnkv.Client
}

// NewClient dials the TiKV cluster via its PD endpoints.
func NewClient(pdEndpoints []string) (Client, error) {
	cli, err := txnkv.NewClient(pdEndpoints)
	if err != nil {
		return nil, errors.Annotatef(err, "dial tikv cluster via pd endpoints %v", pdEndpoints)
	}
	glog.V(0).Infof("connected to tikv cluster via pd endpoints %v", pdEndpoints)
	return &tikvClient{inner: cli}, nil
}

func (c *tikvClient) CreateTxn(ctx context.Context) (Transaction, error) {
	txn, err := c.inner.Begin()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &tikvTxn{txn: txn}, nil
}

func (c *tikvClient) Close() error {
	return c.inner.Close()
}

type tikvTxn struct {
	txn *txnkv.KVTxn
}

func (t *tikvTxn) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := t.txn.Get(ctx, key)
	if err != nil {
		if tikverr.IsErrNotFound(err) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Trace(err)
	}
	return val, nil
}

func (t *tikvTxn) Put(key, value []byte) error {
	return errors.Trace(t.txn.Set(key, value))
}

func (t *tikvTxn) Delete(key []byte) error {
	return errors.Trace(t.txn.Delete(key))
}

func (t *tikvTxn) Commit(ctx context.Context) error {
	return errors.Trace(t.txn.Commit(ctx))
}

func (t *tikvTxn) FullRangeGet(ctx context.Context, begin, end []byte, prefetch bool) RangeIterator {
	iter, err := t.txn.Iter(begin, end)
	if err != nil {
		return &tikvRangeIterator{err: errors.Trace(err)}
	}
	return &tikvRangeIterator{iter: iter, prefetch: prefetch}
}

// tikvRangeIterator adapts txnkv.Iterator to RangeIterator, distinguishing
// clean exhaustion (Valid() true after Next() returns ok=false) from a
// mid-scan error (Valid() false).
type tikvRangeIterator struct {
	iter     interface {
		Valid() bool
		Next() error
		Key() []byte
		Value() []byte
		Close()
	}
	prefetch bool
	err      error
	done     bool
}

func (r *tikvRangeIterator) Next() (key, value []byte, ok bool) {
	if r.err != nil || r.done {
		return nil, nil, false
	}
	if !r.iter.Valid() {
		r.done = true
		return nil, nil, false
	}
	k := append([]byte(nil), r.iter.Key()...)
	v := append([]byte(nil), r.iter.Value()...)
	if err := r.iter.Next(); err != nil {
		r.err = errors.Trace(err)
	}
	return k, v, true
}

func (r *tikvRangeIterator) Valid() bool {
	return r.err == nil
}
