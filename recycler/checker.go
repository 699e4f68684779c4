package recycler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/glog"
	"github.com/objvault/vaultcheck/kvstore"
	"github.com/objvault/vaultcheck/objstore"
	"github.com/objvault/vaultcheck/vault"
)

// ErrObjectsMissing is returned by DoCheck/DoInvertedCheck when the scan
// completed but counted at least one check failure, such as a confirmed
// missing object or an unreferenced one (the -2 outcome);
// callers distinguish it from the unrecoverable (-1) case with errors.Is.
var ErrObjectsMissing = errors.New("recycler: confirmed missing object")

// Stats are the per-check counters reported on every exit path.
type Stats struct {
	NumScanned            int64
	NumScannedWithSegment int64
	NumCheckFailed        int64
	InstanceVolume        int64
	CostSeconds           float64
}

// InstanceChecker runs the forward and inverted checks over one instance.
// Its StorageVault accessors are owned exclusively for the duration of the
// check and released when the checker is dropped.
type InstanceChecker struct {
	client     kvstore.Client
	instanceID string
	registry   VaultRegistry
	stopped    atomic.Bool
}

// NewInstanceChecker loads the instance's vault registry and binds it to a
// fresh checker. Mirrors InstanceChecker::init: inline obj_info first, then
// the storage_vault/ KV range.
func NewInstanceChecker(ctx context.Context, client kvstore.Client, instance catalog.Instance) (*InstanceChecker, error) {
	reg, err := LoadVaultRegistry(ctx, client, instance)
	if err != nil {
		return nil, err
	}
	return &InstanceChecker{client: client, instanceID: instance.InstanceID, registry: reg}, nil
}

// Stop cooperatively asks the in-flight check to abort between phases.
func (c *InstanceChecker) Stop() { c.stopped.Store(true) }

// Stopped reports whether Stop has been called.
func (c *InstanceChecker) Stopped() bool { return c.stopped.Load() }

type tabletCache struct {
	tabletID int64
	files    map[string]struct{}
	vault    vault.StorageVault
	valid    bool
}

// DoCheck runs the forward check: every segment referenced by visible
// rowset metadata must exist in its storage vault. Returns (stats, nil) on
// a clean scan, (stats, ErrObjectsMissing) if any object was confirmed
// missing, or (stats, other error) if the scan itself could not complete
// (range-iterator invalidation) — callers must not call Finish in that case.
func (c *InstanceChecker) DoCheck(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats
	var cache tabletCache

	begin, end := catalog.MetaRowsetInstanceRange(c.instanceID)
	txn, err := c.client.CreateTxn(ctx)
	if err != nil {
		stats.CostSeconds = time.Since(start).Seconds()
		return stats, err
	}
	it := txn.FullRangeGet(ctx, begin, end, true)

	for {
		key, val, ok := it.Next()
		if !ok {
			break
		}
		stats.NumScanned++

		var rsMeta catalog.RowsetMeta
		if err := catalog.Unmarshal(val, &rsMeta); err != nil {
			stats.NumCheckFailed++
			glog.WarningfCtx(ctx, "malformed rowset meta, key=%s", key)
			continue
		}
		c.checkRowsetObjects(ctx, &cache, rsMeta, key, &stats)
	}

	stats.CostSeconds = time.Since(start).Seconds()
	glog.InfofCtx(ctx, "check instance objects finished, cost=%.3fs instance_id=%s num_scanned=%d "+
		"num_scanned_with_segment=%d num_check_failed=%d instance_volume=%s",
		stats.CostSeconds, c.instanceID, stats.NumScanned, stats.NumScannedWithSegment,
		stats.NumCheckFailed, humanize.Bytes(uint64(stats.InstanceVolume)))

	if !it.Valid() {
		return stats, errRangeIteratorInvalid
	}
	if stats.NumCheckFailed > 0 {
		return stats, ErrObjectsMissing
	}
	return stats, nil
}

var errRangeIteratorInvalid = errors.New("recycler: kv range iterator invalidated")

func (c *InstanceChecker) checkRowsetObjects(ctx context.Context, cache *tabletCache, rsMeta catalog.RowsetMeta, key []byte, stats *Stats) {
	if rsMeta.NumSegments == 0 {
		return
	}
	stats.NumScannedWithSegment++

	if cache.tabletID != rsMeta.TabletID || !cache.valid {
		*cache = tabletCache{}
		sv, ok := c.registry[rsMeta.ResourceID]
		if !ok {
			glog.WarningfCtx(ctx, "resource id not found in vault registry, resource_id=%s tablet_id=%d rowset_id=%s",
				rsMeta.ResourceID, rsMeta.TabletID, rsMeta.RowsetIDV2)
			stats.NumCheckFailed++
			return
		}

		files := make(map[string]struct{})
		var tabletVolume int64
		list := sv.Accessor.ListDirectory(ctx, sv.TabletPath(rsMeta.TabletID))
		for {
			entry, ok := list.Next()
			if !ok {
				break
			}
			files[entry.Path] = struct{}{}
			tabletVolume += entry.Size
		}
		if !list.Valid() {
			stats.NumCheckFailed++
			return
		}

		cache.tabletID = rsMeta.TabletID
		cache.files = files
		cache.vault = sv
		cache.valid = true
		stats.InstanceVolume += tabletVolume
	}

	for i := int32(0); i < rsMeta.NumSegments; i++ {
		path := cache.vault.SegmentPath(rsMeta.TabletID, rsMeta.RowsetIDV2, i)
		if _, ok := cache.files[path]; ok {
			continue
		}

		found, err := c.keyExists(ctx, key)
		if err == nil && !found {
			// rowset was concurrently deleted, not a real loss
			continue
		}
		stats.NumCheckFailed++
		glog.WarningfCtx(ctx, "object not exist, path=%s key=%s", path, key)
	}
}

// keyExists re-reads key in a fresh transaction to tell a genuine loss apart
// from a rowset deleted concurrently with the listing.
func (c *InstanceChecker) keyExists(ctx context.Context, key []byte) (bool, error) {
	txn, err := c.client.CreateTxn(ctx)
	if err != nil {
		return false, err
	}
	_, err = txn.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// GetBucketLifecycle iterates the S3 vaults in the registry (skipping HDFS),
// verifying bucket versioning, and returns the minimum per-bucket lifecycle
// in days across all S3 vaults. A registry with no S3 vaults returns a
// lifecycle the caller treats as effectively infinite.
func (c *InstanceChecker) GetBucketLifecycle(ctx context.Context) (int64, error) {
	minDays := int64(-1)
	for _, sv := range c.registry.S3Vaults() {
		lc, ok := sv.Accessor.(objstore.S3LifecycleAccessor)
		if !ok {
			continue
		}
		if err := lc.CheckVersioning(ctx); err != nil {
			return 0, err
		}
		days, err := lc.GetLifecycle(ctx)
		if err != nil {
			return 0, err
		}
		if minDays < 0 || days < minDays {
			minDays = days
		}
	}
	if minDays < 0 {
		return noS3VaultsLifecycleDays, nil
	}
	return minDays, nil
}

// noS3VaultsLifecycleDays signals "no S3 vault in the registry" to DoInspect.
const noS3VaultsLifecycleDays = int64(1) << 62

// DoInvertedCheck runs the inverted check: every segment-shaped object in a
// storage vault must be referenced by some rowset. A confirmed orphan yields
// ErrObjectsMissing and a vault listing or KV failure yields that failure's
// error; both are non-nil: inverted misses are inspected by humans rather
// than re-probed, and the
// daemon's runCheck treats any non-nil error here as unrecoverable for the
// cycle, skipping finish — mirroring the original checker, which never
// distinguishes the two for the inverted pass.
func (c *InstanceChecker) DoInvertedCheck(ctx context.Context) (Stats, error) {
	start := time.Now()
	exec := NewSyncExecutor[vaultCheckResult](4, "inverted-check:"+c.instanceID,
		func(r vaultCheckResult) bool { return r.err != nil })

	for _, sv := range c.registry {
		sv := sv
		exec.Add(func() vaultCheckResult {
			return c.checkVaultInverted(ctx, sv)
		})
	}
	results, finished := exec.WhenAll(ctx)
	exec.Close()

	var stats Stats
	var vaultErr error
	for _, r := range results {
		stats.NumScanned += r.stats.NumScanned
		stats.NumCheckFailed += r.stats.NumCheckFailed
		if r.err != nil && vaultErr == nil {
			vaultErr = r.err
		}
	}
	stats.CostSeconds = time.Since(start).Seconds()
	glog.InfofCtx(ctx, "inverted check instance objects finished, cost=%.3fs instance_id=%s num_scanned=%d num_check_failed=%d",
		stats.CostSeconds, c.instanceID, stats.NumScanned, stats.NumCheckFailed)

	if vaultErr != nil {
		return stats, vaultErr
	}
	if !finished {
		return stats, errRangeIteratorInvalid
	}
	if stats.NumCheckFailed > 0 {
		return stats, ErrObjectsMissing
	}
	return stats, nil
}

type vaultCheckResult struct {
	stats Stats
	err   error
}

func (c *InstanceChecker) checkVaultInverted(ctx context.Context, sv vault.StorageVault) vaultCheckResult {
	var stats Stats
	cache := struct {
		tabletID  int64
		rowsetIDs map[string]struct{}
		valid     bool
	}{}

	list := sv.Accessor.ListDirectory(ctx, "data")
	for {
		entry, ok := list.Next()
		if !ok {
			break
		}
		stats.NumScanned++

		tabletID, rowsetID, ok := sv.Layout.ParseSegmentPath(entry.Path)
		if !ok {
			stats.NumCheckFailed++
			glog.WarningfCtx(ctx, "failed to check segment file, uri=%s path=%s", sv.Accessor.URI(), entry.Path)
			continue
		}

		if !cache.valid || cache.tabletID != tabletID {
			rowsetIDs, err := c.loadRowsetIDs(ctx, tabletID)
			if err != nil {
				return vaultCheckResult{stats: stats, err: err}
			}
			cache.tabletID = tabletID
			cache.rowsetIDs = rowsetIDs
			cache.valid = true
		}

		if _, ok := cache.rowsetIDs[rowsetID]; !ok {
			stats.NumCheckFailed++
			glog.WarningfCtx(ctx, "failed to check segment file, uri=%s path=%s", sv.Accessor.URI(), entry.Path)
		}
	}
	if !list.Valid() {
		return vaultCheckResult{stats: stats, err: errRangeIteratorInvalid}
	}
	return vaultCheckResult{stats: stats}
}

func (c *InstanceChecker) loadRowsetIDs(ctx context.Context, tabletID int64) (map[string]struct{}, error) {
	txn, err := c.client.CreateTxn(ctx)
	if err != nil {
		return nil, err
	}
	begin, end := catalog.MetaRowsetTabletRange(c.instanceID, tabletID)
	it := txn.FullRangeGet(ctx, begin, end, true)

	ids := make(map[string]struct{})
	for {
		_, val, ok := it.Next()
		if !ok {
			break
		}
		var rsMeta catalog.RowsetMeta
		if err := catalog.Unmarshal(val, &rsMeta); err != nil {
			return nil, err
		}
		ids[rsMeta.RowsetIDV2] = struct{}{}
	}
	if !it.Valid() {
		return nil, errRangeIteratorInvalid
	}
	return ids, nil
}
