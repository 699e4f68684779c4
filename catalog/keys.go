package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxEndVersion is the sentinel used as an exclusive range upper bound,
// mirroring the INT64_MAX convention for unbounded rowset scans.
const MaxEndVersion = math.MaxInt64

// MetaRowsetKey builds the meta_rowset/{instance_id}/{tablet_id}/{end_version}
// key. tablet_id and end_version are zero-padded to 20 decimal digits so that
// lexicographic byte order equals numeric order — the ordering guarantee
// the single-slot tablet cache in do_check/do_inverted_check relies on.
func MetaRowsetKey(instanceID string, tabletID, endVersion int64) []byte {
	return []byte(fmt.Sprintf("meta_rowset/%s/%020d/%020d", instanceID, tabletID, endVersion))
}

// MetaRowsetPrefix builds the meta_rowset/{instance_id}/ prefix, used to scan every
// rowset of an instance regardless of tablet.
func MetaRowsetPrefix(instanceID string) []byte {
	return []byte(fmt.Sprintf("meta_rowset/%s/", instanceID))
}

// MetaRowsetTabletRange returns [begin, end) bounding every rowset of one tablet.
func MetaRowsetTabletRange(instanceID string, tabletID int64) (begin, end []byte) {
	return MetaRowsetKey(instanceID, tabletID, 0), MetaRowsetKey(instanceID, tabletID, MaxEndVersion)
}

// MetaRowsetInstanceRange returns [begin, end) bounding every rowset of the instance.
func MetaRowsetInstanceRange(instanceID string) (begin, end []byte) {
	return MetaRowsetKey(instanceID, 0, 0), MetaRowsetKey(instanceID, MaxEndVersion, 0)
}

// StorageVaultKey builds the storage_vault/{instance_id}/{vault_id} key.
func StorageVaultKey(instanceID, vaultID string) []byte {
	return []byte(fmt.Sprintf("storage_vault/%s/%s", instanceID, vaultID))
}

// StorageVaultRange returns [begin, end) bounding every vault of the instance.
func StorageVaultRange(instanceID string) (begin, end []byte) {
	return []byte(fmt.Sprintf("storage_vault/%s/", instanceID)),
		[]byte(fmt.Sprintf("storage_vault/%s/\xff", instanceID))
}

// JobCheckKey builds the job_check/{instance_id} key.
func JobCheckKey(instanceID string) []byte {
	return []byte(fmt.Sprintf("job_check/%s", instanceID))
}

// InstanceKey builds the instance/{instance_id} key the tenant record lives under.
func InstanceKey(instanceID string) []byte {
	return []byte(fmt.Sprintf("instance/%s", instanceID))
}

// InstanceRange returns [begin, end) bounding every tenant record, used by
// the daemon scanner to discover instances each scan cycle.
func InstanceRange() (begin, end []byte) {
	return []byte("instance/"), []byte("instance/\xff")
}

// ParseSegmentPath parses a path-v0 segment object key of the form
// "data/{tablet_id}/{rowset_id}_{seg_idx}.dat" into its tablet id and rowset
// id. Returns ok=false on any malformed input.
func ParseSegmentPath(path string) (tabletID int64, rowsetID string, ok bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	last := parts[len(parts)-1]
	pos := strings.IndexByte(last, '_')
	if pos < 0 {
		return 0, "", false
	}
	return id, last[:pos], true
}
