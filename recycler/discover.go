package recycler

import (
	"context"
	"fmt"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/kvstore"
)

// ListInstances range-scans every tenant record in KV, skipping DELETED
// instances. Used by the daemon scanner each scan cycle.
func ListInstances(ctx context.Context, client kvstore.Client) ([]catalog.Instance, error) {
	txn, err := client.CreateTxn(ctx)
	if err != nil {
		return nil, fmt.Errorf("create txn to list instances: %w", err)
	}
	begin, end := catalog.InstanceRange()
	it := txn.FullRangeGet(ctx, begin, end, true)

	var out []catalog.Instance
	for {
		_, val, ok := it.Next()
		if !ok {
			break
		}
		var inst catalog.Instance
		if err := catalog.Unmarshal(val, &inst); err != nil {
			return nil, fmt.Errorf("decode instance record: %w", err)
		}
		if inst.Status == catalog.InstanceStatusDeleted {
			continue
		}
		out = append(out, inst)
	}
	if !it.Valid() {
		return nil, errRangeIteratorInvalid
	}
	return out, nil
}
