package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/objvault/vaultcheck/kvstore"
)

func TestPutGetCommit(t *testing.T) {
	cli := NewClient(NewStore())
	ctx := context.Background()

	txn, err := cli.CreateTxn(ctx)
	assert.NoError(t, err)
	assert.NoError(t, txn.Put([]byte("a"), []byte("1")))
	assert.NoError(t, txn.Commit(ctx))

	txn2, err := cli.CreateTxn(ctx)
	assert.NoError(t, err)
	v, err := txn2.Get(ctx, []byte("a"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestGetMissingKey(t *testing.T) {
	cli := NewClient(NewStore())
	ctx := context.Background()

	txn, err := cli.CreateTxn(ctx)
	assert.NoError(t, err)
	_, err = txn.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestCommitConflict(t *testing.T) {
	store := NewStore()
	cli := NewClient(store)
	ctx := context.Background()

	seed, _ := cli.CreateTxn(ctx)
	seed.Put([]byte("k"), []byte("v0"))
	assert.NoError(t, seed.Commit(ctx))

	txnA, _ := cli.CreateTxn(ctx)
	_, err := txnA.Get(ctx, []byte("k"))
	assert.NoError(t, err)

	txnB, _ := cli.CreateTxn(ctx)
	_, err = txnB.Get(ctx, []byte("k"))
	assert.NoError(t, err)
	assert.NoError(t, txnB.Put([]byte("k"), []byte("v1")))
	assert.NoError(t, txnB.Commit(ctx))

	assert.NoError(t, txnA.Put([]byte("k"), []byte("v2")))
	err = txnA.Commit(ctx)
	assert.Error(t, err)
}

func TestFullRangeGetOrdered(t *testing.T) {
	cli := NewClient(NewStore())
	ctx := context.Background()

	txn, _ := cli.CreateTxn(ctx)
	for _, k := range []string{"b", "a", "c"} {
		assert.NoError(t, txn.Put([]byte(k), []byte(k)))
	}
	assert.NoError(t, txn.Commit(ctx))

	readTxn, _ := cli.CreateTxn(ctx)
	iter := readTxn.FullRangeGet(ctx, []byte("a"), []byte("z"), false)
	var got []string
	for {
		k, _, ok := iter.Next()
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	assert.True(t, iter.Valid())
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
