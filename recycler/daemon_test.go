package recycler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/config"
	"github.com/objvault/vaultcheck/kvstore/memkv"
)

func seedInstance(t *testing.T, store *memkv.Store, inst catalog.Instance) {
	t.Helper()
	cli := memkv.NewClient(store)
	txn, err := cli.CreateTxn(context.Background())
	require.NoError(t, err)
	val, err := catalog.Marshal(inst)
	require.NoError(t, err)
	require.NoError(t, txn.Put(catalog.InstanceKey(inst.InstanceID), val))
	require.NoError(t, txn.Commit(context.Background()))
}

func newTestDaemon(store *memkv.Store) *Daemon {
	client := memkv.NewClient(store)
	opts := &config.Options{
		ScanInstancesIntervalSec: 60,
		RecycleConcurrency:       1,
		RecycleJobLeaseExpiredMs: 60_000,
		CheckObjectIntervalSec:   300,
		ReservedBufferDays:       3,
	}
	return NewDaemon(client, opts, "127.0.0.1:9320")
}

// pending_set and working_set must never intersect for the same instance.
func TestDaemon_PendingWorkingMutualExclusion(t *testing.T) {
	store := memkv.NewStore()
	seedInstance(t, store, catalog.Instance{InstanceID: "i1"})
	d := newTestDaemon(store)

	d.scanOnce(context.Background())
	d.mu.Lock()
	_, pending := d.pendingSet["i1"]
	d.mu.Unlock()
	assert.True(t, pending)

	inst, enqueueTimeS, ok := d.popPending(context.Background())
	require.True(t, ok)
	assert.Equal(t, "i1", inst.InstanceID)

	d.mu.Lock()
	_, stillPending := d.pendingSet["i1"]
	d.mu.Unlock()
	assert.False(t, stillPending, "popPending must remove from pendingSet")

	d.processInstance(context.Background(), inst, enqueueTimeS)

	d.mu.Lock()
	_, working := d.workingSet["i1"]
	d.mu.Unlock()
	assert.False(t, working, "processInstance must remove from workingSet once finished")
}

func TestDaemon_ScanOnceSkipsAlreadyPendingOrWorking(t *testing.T) {
	store := memkv.NewStore()
	seedInstance(t, store, catalog.Instance{InstanceID: "i1"})
	seedInstance(t, store, catalog.Instance{InstanceID: "i2"})
	d := newTestDaemon(store)

	d.mu.Lock()
	d.workingSet["i2"] = &InstanceChecker{instanceID: "i2"}
	d.mu.Unlock()

	d.scanOnce(context.Background())

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.pendingQueue, 1)
	assert.Equal(t, "i1", d.pendingQueue[0].instance.InstanceID)
	assert.NotContains(t, d.pendingSet, "i2")
}

func TestDaemon_ScanOnceDoesNotDuplicateEnqueue(t *testing.T) {
	store := memkv.NewStore()
	seedInstance(t, store, catalog.Instance{InstanceID: "i1"})
	d := newTestDaemon(store)

	d.scanOnce(context.Background())
	d.scanOnce(context.Background())

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.pendingQueue, 1)
}

func TestDaemon_ScanOnceRespectsFilter(t *testing.T) {
	store := memkv.NewStore()
	seedInstance(t, store, catalog.Instance{InstanceID: "i1"})
	seedInstance(t, store, catalog.Instance{InstanceID: "i2"})
	d := newTestDaemon(store)
	d.filter = NewInstanceFilter(nil, []string{"i2"})

	d.scanOnce(context.Background())

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.pendingQueue, 1)
	assert.Equal(t, "i1", d.pendingQueue[0].instance.InstanceID)
}

// Stop must join every goroutine within a bounded time, not block forever.
func TestDaemon_StopJoinsWithinBoundedTime(t *testing.T) {
	store := memkv.NewStore()
	d := newTestDaemon(store)
	d.scanIntervalSec = 60

	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return within the bounded time window")
	}
}

func TestDaemon_StopIsIdempotent(t *testing.T) {
	store := memkv.NewStore()
	d := newTestDaemon(store)
	d.Start(context.Background())

	done := make(chan struct{})
	go func() {
		d.Stop()
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("double Stop did not return within the bounded time window")
	}
}
