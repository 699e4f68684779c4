// Package catalog defines the wire types authoritative metadata is stored as,
// and the keys they live under in the transactional KV store. Instance,
// RowsetMeta, StorageVaultPB and JobRecycle are the four record kinds the
// checker reads, under the instance/meta_rowset/storage_vault/job_check key
// families.
package catalog

// InstanceStatus mirrors InstanceInfoPB.status.
type InstanceStatus int32

const (
	InstanceStatusNormal InstanceStatus = iota
	InstanceStatusDeleted
)

// ObjectStoreConf is the legacy inline obj_info entry on Instance (path-v0 vault source).
type ObjectStoreConf struct {
	ID        string `json:"id"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AK        string `json:"ak,omitempty"`
	SK        string `json:"sk,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Instance is the external, read-only-to-the-checker tenant record.
type Instance struct {
	InstanceID  string            `json:"instance_id"`
	Status      InstanceStatus    `json:"status"`
	CtimeMs     int64             `json:"ctime_ms"`
	ObjInfo     []ObjectStoreConf `json:"obj_info"`
	ResourceIDs []string          `json:"resource_ids"`
}

// VaultType mirrors Accessor.Type().
type VaultType int32

const (
	VaultTypeS3 VaultType = iota
	VaultTypeHDFS
)

// StorageVaultPB is the wire form of a configured vault, read from
// storage_vault/{instance_id}/{vault_id}.
type StorageVaultPB struct {
	ID       string    `json:"id"`
	Type     VaultType `json:"type"`
	Bucket   string    `json:"bucket"` // S3 bucket, or HDFS root path
	Prefix   string    `json:"prefix"`
	Endpoint string    `json:"endpoint"`
	Region   string    `json:"region"`
	AK       string    `json:"ak,omitempty"`
	SK       string    `json:"sk,omitempty"`
	NameNode string    `json:"name_node,omitempty"` // HDFS only
}

// RowsetMeta mirrors RowsetMetaCloudPB. Stored under
// meta_rowset/{instance_id}/{tablet_id}/{end_version}.
type RowsetMeta struct {
	TabletID    int64  `json:"tablet_id"`
	EndVersion  int64  `json:"end_version"`
	RowsetIDV2  string `json:"rowset_id_v2"`
	ResourceID  string `json:"resource_id"`
	NumSegments int32  `json:"num_segments"`
	TxnID       int64  `json:"txn_id,omitempty"`
}

// JobStatus mirrors JobRecyclePB.status.
type JobStatus int32

const (
	JobStatusIdle JobStatus = iota
	JobStatusBusy
)

// JobRecycle is the per-instance lease record under job_check/{instance_id}.
type JobRecycle struct {
	InstanceID        string    `json:"instance_id"`
	LesseeIPPort      string    `json:"lessee_ip_port"`
	LeaseExpirationMs int64     `json:"lease_expiration_ms"`
	LastCtimeMs       int64     `json:"last_ctime_ms"`
	HasLastCtimeMs    bool      `json:"has_last_ctime_ms"`
	LastSuccessTimeMs int64     `json:"last_success_time_ms"`
	Status            JobStatus `json:"status"`
}
