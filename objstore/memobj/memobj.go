// Package memobj is an in-process objstore.Accessor for tests: a fixed set
// of objects plus optionally a bucket lifecycle/versioning answer, letting
// test cases assert forward/inverted check behavior without a real S3 or
// HDFS endpoint.
package memobj

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/objvault/vaultcheck/objstore"
)

// Accessor is a fixed in-memory object set.
type Accessor struct {
	typ     objstore.AccessorType
	uri     string
	objects map[string]int64

	versioningErr error
	lifecycleDays int64
	lifecycleErr  error
}

// New creates an accessor of the given type with no objects yet.
func New(typ objstore.AccessorType, uri string) *Accessor {
	return &Accessor{typ: typ, uri: uri, objects: make(map[string]int64)}
}

// Put registers an object at path with the given size.
func (a *Accessor) Put(path string, size int64) {
	a.objects[path] = size
}

// Remove deletes an object, simulating concurrent compaction/GC.
func (a *Accessor) Remove(path string) {
	delete(a.objects, path)
}

// SetLifecycle configures the answer GetLifecycle returns.
func (a *Accessor) SetLifecycle(days int64) {
	a.lifecycleDays = days
}

// SetLifecycleError forces GetLifecycle to fail.
func (a *Accessor) SetLifecycleError(err error) {
	a.lifecycleErr = err
}

// SetVersioningError forces CheckVersioning to fail.
func (a *Accessor) SetVersioningError(err error) {
	a.versioningErr = err
}

func (a *Accessor) Type() objstore.AccessorType { return a.typ }

func (a *Accessor) URI() string { return a.uri }

func (a *Accessor) ListDirectory(ctx context.Context, prefix string) objstore.ListIterator {
	var entries []objstore.ObjectInfo
	for p, size := range a.objects {
		if strings.HasPrefix(p, prefix) {
			entries = append(entries, objstore.ObjectInfo{Path: p, Size: size})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return &iterator{entries: entries, valid: true}
}

func (a *Accessor) CheckVersioning(ctx context.Context) error {
	return a.versioningErr
}

func (a *Accessor) GetLifecycle(ctx context.Context) (int64, error) {
	if a.lifecycleErr != nil {
		return 0, a.lifecycleErr
	}
	return a.lifecycleDays, nil
}

// ErrListFailed is a ready-made failure for SetLifecycleError/list-failure tests.
var ErrListFailed = errors.New("memobj: list failed")

type iterator struct {
	entries []objstore.ObjectInfo
	pos     int
	valid   bool
}

func (it *iterator) Next() (objstore.ObjectInfo, bool) {
	if it.pos >= len(it.entries) {
		return objstore.ObjectInfo{}, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e, true
}

func (it *iterator) Valid() bool { return it.valid }

// Invalidate makes this iterator report a listing failure instead of clean
// exhaustion once it is drained.
func Invalidate(it objstore.ListIterator) {
	if i, ok := it.(*iterator); ok {
		i.valid = false
	}
}
