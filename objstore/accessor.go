// Package objstore defines the storage-vault accessor contract: listing,
// and for S3 additionally versioning/lifecycle. Implementations wrap
// github.com/aws/aws-sdk-go (S3) and github.com/colinmarc/hdfs/v2 (HDFS),
// the same two backends wired into SeaweedFS's weed/remote_storage tree.
package objstore

import "context"

// AccessorType mirrors catalog.VaultType's source vocabulary.
type AccessorType int32

const (
	TypeS3 AccessorType = iota
	TypeHDFS
)

func (t AccessorType) String() string {
	switch t {
	case TypeS3:
		return "S3"
	case TypeHDFS:
		return "HDFS"
	default:
		return "UNKNOWN"
	}
}

// ObjectInfo is one listed entry.
type ObjectInfo struct {
	Path string
	Size int64
}

// Accessor is the capability set every storage vault exposes.
type Accessor interface {
	Type() AccessorType
	URI() string
	// ListDirectory returns a lazy, possibly paginated sequence of entries
	// under prefix. Consumers must check Valid() after Next reports ok=false.
	ListDirectory(ctx context.Context, prefix string) ListIterator
}

// S3LifecycleAccessor is implemented additionally by S3-backed accessors.
type S3LifecycleAccessor interface {
	CheckVersioning(ctx context.Context) error
	GetLifecycle(ctx context.Context) (days int64, err error)
}

// ListIterator is a lazy, possibly paginated object listing.
type ListIterator interface {
	Next() (entry ObjectInfo, ok bool)
	Valid() bool
}
