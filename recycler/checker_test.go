package recycler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/kvstore/memkv"
	"github.com/objvault/vaultcheck/objstore"
	"github.com/objvault/vaultcheck/objstore/memobj"
	"github.com/objvault/vaultcheck/vault"
)

// seedRowset writes a rowset meta record directly via memkv, bypassing the
// generic kvstore.Client interface so tests don't need a throwaway txn type.
func seedRowset(t *testing.T, store *memkv.Store, instanceID string, rs catalog.RowsetMeta) {
	t.Helper()
	cli := memkv.NewClient(store)
	txn, err := cli.CreateTxn(context.Background())
	require.NoError(t, err)
	val, err := catalog.Marshal(rs)
	require.NoError(t, err)
	require.NoError(t, txn.Put(catalog.MetaRowsetKey(instanceID, rs.TabletID, rs.EndVersion), val))
	require.NoError(t, txn.Commit(context.Background()))
}

func newTestChecker(t *testing.T, instanceID string, acc objstore.Accessor) (*InstanceChecker, *memkv.Store) {
	t.Helper()
	store := memkv.NewStore()
	client := memkv.NewClient(store)
	reg := VaultRegistry{"vault-1": vault.StorageVault{ID: "vault-1", Accessor: acc, Layout: vault.PathV0}}
	return &InstanceChecker{client: client, instanceID: instanceID, registry: reg}, store
}

func TestDoCheck_S1Clean(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://b/")
	acc.Put("data/100/R1_0.dat", 10)
	acc.Put("data/100/R1_1.dat", 20)

	checker, store := newTestChecker(t, "i1", acc)
	seedRowset(t, store, "i1", catalog.RowsetMeta{TabletID: 100, EndVersion: 2, RowsetIDV2: "R1", ResourceID: "vault-1", NumSegments: 2})

	stats, err := checker.DoCheck(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 1, stats.NumScanned)
	assert.EqualValues(t, 1, stats.NumScannedWithSegment)
	assert.EqualValues(t, 0, stats.NumCheckFailed)
	assert.EqualValues(t, 30, stats.InstanceVolume)
}

func TestDoCheck_S2RealLoss(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://b/")
	acc.Put("data/100/R1_0.dat", 10)
	// data/100/R1_1.dat intentionally absent

	checker, store := newTestChecker(t, "i1", acc)
	seedRowset(t, store, "i1", catalog.RowsetMeta{TabletID: 100, EndVersion: 2, RowsetIDV2: "R1", ResourceID: "vault-1", NumSegments: 2})

	stats, err := checker.DoCheck(context.Background())
	assert.ErrorIs(t, err, ErrObjectsMissing)
	assert.EqualValues(t, 1, stats.NumCheckFailed)
}

func TestDoCheck_S3ConcurrentDelete(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://b/")
	acc.Put("data/100/R1_0.dat", 10)
	// data/100/R1_1.dat absent, but the rowset key itself is never written,
	// simulating a rowset deleted between listing and the re-probe.

	checker, _ := newTestChecker(t, "i1", acc)
	cache := tabletCache{}
	var stats Stats
	checker.checkRowsetObjects(context.Background(), &cache, catalog.RowsetMeta{
		TabletID: 100, RowsetIDV2: "R1", ResourceID: "vault-1", NumSegments: 2,
	}, catalog.MetaRowsetKey("i1", 100, 2), &stats)

	assert.EqualValues(t, 0, stats.NumCheckFailed)
}

func TestDoInvertedCheck_S4Orphan(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://b/")
	acc.Put("data/100/R2_0.dat", 5)

	checker, store := newTestChecker(t, "i1", acc)
	seedRowset(t, store, "i1", catalog.RowsetMeta{TabletID: 100, EndVersion: 1, RowsetIDV2: "R1", ResourceID: "vault-1", NumSegments: 1})

	stats, err := checker.DoInvertedCheck(context.Background())
	assert.ErrorIs(t, err, ErrObjectsMissing)
	assert.EqualValues(t, 1, stats.NumCheckFailed)
}

func TestDoCheck_SkipsZeroSegmentRowsets(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://b/")
	checker, store := newTestChecker(t, "i1", acc)
	seedRowset(t, store, "i1", catalog.RowsetMeta{TabletID: 100, EndVersion: 1, RowsetIDV2: "R1", ResourceID: "vault-1", NumSegments: 0})

	stats, err := checker.DoCheck(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 1, stats.NumScanned)
	assert.EqualValues(t, 0, stats.NumScannedWithSegment)
}

func TestGetBucketLifecycleMinimumAcrossVaults(t *testing.T) {
	acc1 := memobj.New(objstore.TypeS3, "s3://a/")
	acc1.SetLifecycle(30)
	acc2 := memobj.New(objstore.TypeS3, "s3://b/")
	acc2.SetLifecycle(7)

	checker := &InstanceChecker{registry: VaultRegistry{
		"v1": vault.StorageVault{ID: "v1", Accessor: acc1, Layout: vault.PathV0},
		"v2": vault.StorageVault{ID: "v2", Accessor: acc2, Layout: vault.PathV0},
	}}
	days, err := checker.GetBucketLifecycle(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 7, days)
}

func TestGetBucketLifecycleNoS3Vaults(t *testing.T) {
	checker := &InstanceChecker{registry: VaultRegistry{}}
	days, err := checker.GetBucketLifecycle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, noS3VaultsLifecycleDays, days)
}

func TestGetBucketLifecycleVersioningFailureAborts(t *testing.T) {
	acc := memobj.New(objstore.TypeS3, "s3://a/")
	acc.SetVersioningError(errors.New("versioning disabled"))
	checker := &InstanceChecker{registry: VaultRegistry{
		"v1": vault.StorageVault{ID: "v1", Accessor: acc, Layout: vault.PathV0},
	}}
	_, err := checker.GetBucketLifecycle(context.Background())
	assert.Error(t, err)
}
