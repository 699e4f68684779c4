package recycler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/kvstore"
	"github.com/objvault/vaultcheck/objstore"
	"github.com/objvault/vaultcheck/vault"
)

// VaultRegistry maps resource_id to the StorageVault that resource is
// served from. Built once per InstanceChecker.init and owned exclusively by
// that checker for the duration of the check.
type VaultRegistry map[string]vault.StorageVault

// LoadVaultRegistry loads vaults in two passes: first the legacy inline
// instance.obj_info entries (path-v0), then the storage_vault/{instance_id}/
// KV range with prefetching. Duplicates from the two sources collapse on
// resource_id, the range scan winning since it is applied second.
// Malformed encoded vaults fail initialization.
func LoadVaultRegistry(ctx context.Context, client kvstore.Client, instance catalog.Instance) (VaultRegistry, error) {
	reg := make(VaultRegistry)

	// Each legacy vault's accessor construction (an AWS session dial) is
	// independent of the others, so build them concurrently; order among
	// them doesn't matter, only that this whole pass completes before the
	// storage_vault/ range scan below applies its overrides.
	legacy := make([]vault.StorageVault, len(instance.ObjInfo))
	var g errgroup.Group
	for i, conf := range instance.ObjInfo {
		i, conf := i, conf
		g.Go(func() error {
			sv, err := vault.NewFromLegacyConfig(conf)
			if err != nil {
				return fmt.Errorf("load legacy vault %s for instance %s: %w", conf.ID, instance.InstanceID, err)
			}
			legacy[i] = sv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, sv := range legacy {
		reg[sv.ID] = sv
	}

	txn, err := client.CreateTxn(ctx)
	if err != nil {
		return nil, fmt.Errorf("create txn to load vault registry for %s: %w", instance.InstanceID, err)
	}
	begin, end := catalog.StorageVaultRange(instance.InstanceID)
	it := txn.FullRangeGet(ctx, begin, end, true)

	for {
		_, val, ok := it.Next()
		if !ok {
			break
		}
		var conf catalog.StorageVaultPB
		if err := catalog.Unmarshal(val, &conf); err != nil {
			return nil, fmt.Errorf("decode storage vault for instance %s: %w", instance.InstanceID, err)
		}
		sv, err := vault.New(conf)
		if err != nil {
			return nil, fmt.Errorf("load vault %s for instance %s: %w", conf.ID, instance.InstanceID, err)
		}
		reg[conf.ID] = sv
	}
	if !it.Valid() {
		return nil, fmt.Errorf("storage vault range iterator invalidated for instance %s", instance.InstanceID)
	}

	return reg, nil
}

// S3Vaults returns every S3-backed vault in the registry, the subset the
// interval inspector consults for bucket lifecycle.
func (r VaultRegistry) S3Vaults() []vault.StorageVault {
	var out []vault.StorageVault
	for _, sv := range r {
		if sv.Accessor.Type() == objstore.TypeS3 {
			out = append(out, sv)
		}
	}
	return out
}
