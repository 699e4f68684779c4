package recycler

import (
	"context"
	"errors"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/glog"
	"github.com/objvault/vaultcheck/kvstore"
	"github.com/objvault/vaultcheck/stats"
)

const millisPerDay = 86_400_000

// DoInspect compares one instance's last successful check recency against
// its bucket lifecycle minus a reserved safety buffer, emitting a WARNING
// alarm if the instance risks losing unexpired objects because no checker
// has picked it up recently enough.
func DoInspect(ctx context.Context, client kvstore.Client, instance catalog.Instance, reservedBufferDays int64, nowMs int64) {
	key := catalog.JobCheckKey(instance.InstanceID)
	txn, err := client.CreateTxn(ctx)
	if err != nil {
		glog.Warningf("Err for check interval: failed to create txn")
		return
	}
	val, getErr := txn.Get(ctx, key)
	keyNotFound := errors.Is(getErr, kvstore.ErrKeyNotFound)
	if getErr != nil && !keyNotFound {
		glog.Warningf("Err for check interval: failed to get kv, err=%v key=%s", getErr, key)
		return
	}

	checker, err := NewInstanceChecker(ctx, client, instance)
	if err != nil {
		glog.Warningf("Err for check interval: failed to init instance checker, instance_id=%s", instance.InstanceID)
		return
	}

	lifecycleDays, err := checker.GetBucketLifecycle(ctx)
	if err != nil {
		glog.Warningf("Err for check interval: failed to get bucket lifecycle, instance_id=%s", instance.InstanceID)
		return
	}
	if lifecycleDays == noS3VaultsLifecycleDays {
		// No S3 bucket (maybe all accessors are HDFS); lifecycle is
		// effectively infinite, skip inspection.
		return
	}

	var rec catalog.JobRecycle
	lastCtimeMs := instance.CtimeMs
	jobStatus := catalog.JobStatusIdle
	if !keyNotFound {
		if err := catalog.Unmarshal(val, &rec); err != nil {
			glog.Warningf("Err for check interval: failed to parse job record, key=%s", key)
		} else if rec.HasLastCtimeMs {
			lastCtimeMs = rec.LastCtimeMs
			jobStatus = rec.Status
			stats.CheckerLastSuccessTimeMs.WithLabelValues(instance.InstanceID).Set(float64(rec.LastSuccessTimeMs))
		}
	}

	fire, expirationMs := inspectDecision(lifecycleDays, reservedBufferDays, lastCtimeMs, nowMs)
	if fire {
		glog.Warningf("Err for check interval: check risks, instance_id: %s last_ctime_ms: %d "+
			"job_status: %v bucket_lifecycle_days: %d reserved_buffer_days: %d expiration_ms: %d",
			instance.InstanceID, lastCtimeMs, jobStatus, lifecycleDays, reservedBufferDays, expirationMs)
	}
}

// inspectDecision computes the alarm expiration window and whether it has
// elapsed. Preserved verbatim from the original: when lifecycleDays <=
// reservedBufferDays the buffer is not subtracted at all, rather than
// clamping to zero. This is flagged, not "fixed" — see DESIGN.md.
func inspectDecision(lifecycleDays, reservedBufferDays, lastCtimeMs, nowMs int64) (fire bool, expirationMs int64) {
	if lifecycleDays > reservedBufferDays {
		expirationMs = (lifecycleDays - reservedBufferDays) * millisPerDay
	} else {
		expirationMs = lifecycleDays * millisPerDay
	}
	fire = nowMs-lastCtimeMs >= expirationMs
	return fire, expirationMs
}
