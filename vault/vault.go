// Package vault binds a configured storage-vault's accessor to a path
// layout, and resolves tablet/segment object paths against that layout.
// Kept as an interface (PathLayout, today one implementation: pathV0) so a
// future layout version needs no change to the check loops in recycler.
package vault

import (
	"fmt"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/objstore"
)

// New builds a StorageVault from a configured vault record, dispatching to
// the S3 or HDFS accessor by type. Every configured vault today uses the
// path-v0 layout.
func New(conf catalog.StorageVaultPB) (StorageVault, error) {
	switch conf.Type {
	case catalog.VaultTypeS3:
		acc, err := objstore.NewS3Accessor(conf)
		if err != nil {
			return StorageVault{}, fmt.Errorf("build s3 accessor for vault %s: %w", conf.ID, err)
		}
		return StorageVault{ID: conf.ID, Accessor: acc, Layout: PathV0}, nil
	case catalog.VaultTypeHDFS:
		acc, err := objstore.NewHDFSAccessor(conf)
		if err != nil {
			return StorageVault{}, fmt.Errorf("build hdfs accessor for vault %s: %w", conf.ID, err)
		}
		return StorageVault{ID: conf.ID, Accessor: acc, Layout: PathV0}, nil
	default:
		return StorageVault{}, fmt.Errorf("unknown vault type %d for vault %s", conf.Type, conf.ID)
	}
}

// NewFromLegacyConfig builds a StorageVault from an inline instance.obj_info
// entry, the legacy path-v0 vault source that predates the storage_vault/
// key family.
func NewFromLegacyConfig(conf catalog.ObjectStoreConf) (StorageVault, error) {
	return New(catalog.StorageVaultPB{
		ID:       conf.ID,
		Type:     catalog.VaultTypeS3,
		Bucket:   conf.Bucket,
		Prefix:   conf.Prefix,
		Endpoint: conf.Endpoint,
		Region:   conf.Region,
		AK:       conf.AK,
		SK:       conf.SK,
	})
}

// PathLayout converts tablet/rowset/segment identity into object paths and
// back, and is the only place that understands a given on-disk layout.
type PathLayout interface {
	TabletPath(tabletID int64) string
	SegmentPath(tabletID int64, rowsetID string, segIdx int32) string
	// ParseSegmentPath recovers (tabletID, rowsetID) from a listed object
	// path. ok is false when the path does not match this layout.
	ParseSegmentPath(path string) (tabletID int64, rowsetID string, ok bool)
}

// StorageVault is one configured backend (S3 bucket or HDFS root) plus the
// path layout rule its objects are written under. Owned exclusively by one
// instance checker during a check; the accessor is released when the
// checker is dropped.
type StorageVault struct {
	ID       string
	Accessor objstore.Accessor
	Layout   PathLayout
}

func (v StorageVault) TabletPath(tabletID int64) string {
	return v.Layout.TabletPath(tabletID)
}

func (v StorageVault) SegmentPath(tabletID int64, rowsetID string, segIdx int32) string {
	return v.Layout.SegmentPath(tabletID, rowsetID, segIdx)
}

// pathV0 is the legacy, currently only, layout:
// data/{tablet_id}/{rowset_id_v2}_{seg_idx}.dat
type pathV0 struct{}

// PathV0 is the stock path-v0 layout.
var PathV0 PathLayout = pathV0{}

func (pathV0) TabletPath(tabletID int64) string {
	return fmt.Sprintf("data/%d", tabletID)
}

func (pathV0) SegmentPath(tabletID int64, rowsetID string, segIdx int32) string {
	return fmt.Sprintf("data/%d/%s_%d.dat", tabletID, rowsetID, segIdx)
}

func (pathV0) ParseSegmentPath(path string) (int64, string, bool) {
	return catalog.ParseSegmentPath(path)
}
