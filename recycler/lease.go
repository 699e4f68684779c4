package recycler

import (
	"context"
	"errors"
	"fmt"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/kvstore"
)

// ErrLeaseConflict is returned by Prepare when the job_check record is BUSY
// with an unexpired lease, or when the prepare commit conflicts. It is
// not retried inside the primitive: the caller drops the instance this
// cycle.
var ErrLeaseConflict = errors.New("recycler: lease held by another lessee")

// ErrLeaseLost is returned by Lease when the record was stolen or expired
// out from under the caller; the caller must abort the in-flight check.
var ErrLeaseLost = errors.New("recycler: lease lost")

// Prepare attempts to acquire the exclusive check job for instanceID.
// On success, writes status=BUSY, lessee=lesseeIPPort, bumps the lease
// expiration to now+leaseMs, and preserves last_ctime_ms if the record
// already had one, else sets it to now.
func Prepare(ctx context.Context, client kvstore.Client, instanceID, lesseeIPPort string, leaseMs int64, nowMs int64) error {
	txn, err := client.CreateTxn(ctx)
	if err != nil {
		return fmt.Errorf("create txn for prepare(%s): %w", instanceID, err)
	}

	key := catalog.JobCheckKey(instanceID)
	rec, err := getJobRecycle(ctx, txn, key)
	if err != nil {
		return fmt.Errorf("read job record for prepare(%s): %w", instanceID, err)
	}
	if rec != nil {
		if rec.Status == catalog.JobStatusBusy && rec.LeaseExpirationMs > nowMs {
			return ErrLeaseConflict
		}
	} else {
		rec = &catalog.JobRecycle{InstanceID: instanceID}
	}

	rec.Status = catalog.JobStatusBusy
	rec.LesseeIPPort = lesseeIPPort
	rec.LeaseExpirationMs = nowMs + leaseMs
	if !rec.HasLastCtimeMs {
		rec.LastCtimeMs = nowMs
		rec.HasLastCtimeMs = true
	}

	if err := putJobRecycle(txn, key, rec); err != nil {
		return fmt.Errorf("encode job record for prepare(%s): %w", instanceID, err)
	}
	if err := txn.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLeaseConflict, err)
	}
	return nil
}

// Lease renews an already-prepared job's expiration. Returns ErrLeaseLost
// if the record was stolen by another lessee or its lease already expired;
// the caller must stop the in-flight checker.
func Lease(ctx context.Context, client kvstore.Client, instanceID, lesseeIPPort string, leaseMs int64, nowMs int64) error {
	txn, err := client.CreateTxn(ctx)
	if err != nil {
		return fmt.Errorf("create txn for lease(%s): %w", instanceID, err)
	}

	key := catalog.JobCheckKey(instanceID)
	rec, err := getJobRecycle(ctx, txn, key)
	if err != nil {
		return fmt.Errorf("read job record for lease(%s): %w", instanceID, err)
	}
	if rec == nil || rec.LesseeIPPort != lesseeIPPort || rec.LeaseExpirationMs <= nowMs {
		return ErrLeaseLost
	}

	rec.LeaseExpirationMs = nowMs + leaseMs
	if err := putJobRecycle(txn, key, rec); err != nil {
		return fmt.Errorf("encode job record for lease(%s): %w", instanceID, err)
	}
	if err := txn.Commit(ctx); err != nil {
		return ErrLeaseLost
	}
	return nil
}

// Finish releases the job, recording last_ctime_ms and, on success,
// last_success_time_ms.
func Finish(ctx context.Context, client kvstore.Client, instanceID, lesseeIPPort string, success bool, ctimeMs, nowMs int64) error {
	txn, err := client.CreateTxn(ctx)
	if err != nil {
		return fmt.Errorf("create txn for finish(%s): %w", instanceID, err)
	}

	key := catalog.JobCheckKey(instanceID)
	rec, err := getJobRecycle(ctx, txn, key)
	if err != nil {
		return fmt.Errorf("read job record for finish(%s): %w", instanceID, err)
	}
	if rec == nil {
		rec = &catalog.JobRecycle{InstanceID: instanceID}
	}

	rec.Status = catalog.JobStatusIdle
	rec.LesseeIPPort = lesseeIPPort
	rec.LastCtimeMs = ctimeMs
	rec.HasLastCtimeMs = true
	if success {
		rec.LastSuccessTimeMs = nowMs
	}

	if err := putJobRecycle(txn, key, rec); err != nil {
		return fmt.Errorf("encode job record for finish(%s): %w", instanceID, err)
	}
	return txn.Commit(ctx)
}

func getJobRecycle(ctx context.Context, txn kvstore.Transaction, key []byte) (*catalog.JobRecycle, error) {
	val, err := txn.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec catalog.JobRecycle
	if err := catalog.Unmarshal(val, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func putJobRecycle(txn kvstore.Transaction, key []byte, rec *catalog.JobRecycle) error {
	val, err := catalog.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Put(key, val)
}
