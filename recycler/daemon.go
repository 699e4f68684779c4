package recycler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/objvault/vaultcheck/catalog"
	"github.com/objvault/vaultcheck/config"
	"github.com/objvault/vaultcheck/glog"
	"github.com/objvault/vaultcheck/kvstore"
	"github.com/objvault/vaultcheck/stats"
)

// Daemon runs the scanner, worker pool, lease-renewal, and inspector
// goroutines that together discover instances, run their forward/inverted
// checks under an exclusive lease, and alarm on checks falling behind
// bucket lifecycle. pendingQueue/pendingSet/workingSet are guarded by mu;
// pendingSet keys always equal pendingQueue instance ids, and pendingSet
// never intersects workingSet.
type Daemon struct {
	client       kvstore.Client
	lesseeIPPort string
	runID        string
	filter       InstanceFilter

	scanIntervalSec     int
	concurrency         int
	leaseExpiredMs      int64
	checkLeaseMs        int64
	reservedBufferDays  int64
	enableInvertedCheck bool

	mu           sync.Mutex
	pendingQueue []pendingEntry
	pendingSet   map[string]int64
	workingSet   map[string]*InstanceChecker

	notify chan struct{}
	cancel context.CancelFunc
	stop   sync.Once
	wg     sync.WaitGroup
}

type pendingEntry struct {
	instance     catalog.Instance
	enqueueTimeS int64
}

// NewDaemon builds a Daemon from a loaded configuration snapshot. lesseeIPPort
// identifies this process as a lease holder, composed by the caller from
// brpc_listen_port.
func NewDaemon(client kvstore.Client, opts *config.Options, lesseeIPPort string) *Daemon {
	return &Daemon{
		client:              client,
		lesseeIPPort:        lesseeIPPort,
		runID:               uuid.NewString(),
		filter:              NewInstanceFilter(opts.RecycleWhitelist, opts.RecycleBlacklist),
		scanIntervalSec:     opts.ScanInstancesIntervalSec,
		concurrency:         opts.RecycleConcurrency,
		leaseExpiredMs:      opts.RecycleJobLeaseExpiredMs,
		checkLeaseMs:        opts.CheckObjectIntervalSec * 1000,
		reservedBufferDays:  opts.ReservedBufferDays,
		enableInvertedCheck: opts.EnableInvertedCheck,
		pendingSet:          make(map[string]int64),
		workingSet:          make(map[string]*InstanceChecker),
		notify:              make(chan struct{}, 1),
	}
}

// Start launches the scanner, lease-renewal, inspector, and recycle_concurrency
// worker goroutines. ctx bounds the daemon's lifetime in addition to Stop.
func (d *Daemon) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	glog.Infof("daemon run %s starting, lessee=%s", d.runID, d.lesseeIPPort)
	d.wg.Add(3 + d.concurrency)
	go d.runScanner(ctx)
	go d.runLeaseRenewal(ctx)
	go d.runInspector(ctx)
	for i := 0; i < d.concurrency; i++ {
		go d.runWorker(ctx)
	}
}

// Stop requests every goroutine to exit, asks every in-flight checker to
// stop cooperatively, and blocks until all of them have joined. Idempotent.
func (d *Daemon) Stop() {
	d.stop.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		d.mu.Lock()
		for _, checker := range d.workingSet {
			checker.Stop()
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Daemon) signalWorkers() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *Daemon) runScanner(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(time.Duration(d.scanIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		d.scanOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Daemon) scanOnce(ctx context.Context) {
	instances, err := ListInstances(ctx, d.client)
	if err != nil {
		glog.Warningf("scanner failed to list instances: %v", err)
		return
	}

	nowS := time.Now().Unix()
	enqueued := 0
	d.mu.Lock()
	for _, inst := range instances {
		if d.filter.FilterOut(inst.InstanceID) {
			continue
		}
		if _, ok := d.pendingSet[inst.InstanceID]; ok {
			continue
		}
		if _, ok := d.workingSet[inst.InstanceID]; ok {
			continue
		}
		d.pendingSet[inst.InstanceID] = nowS
		d.pendingQueue = append(d.pendingQueue, pendingEntry{instance: inst, enqueueTimeS: nowS})
		enqueued++
	}
	d.mu.Unlock()

	if enqueued > 0 {
		d.signalWorkers()
	}
}

func (d *Daemon) runWorker(ctx context.Context) {
	defer d.wg.Done()
	for {
		inst, enqueueTimeS, ok := d.popPending(ctx)
		if !ok {
			return
		}
		d.processInstance(ctx, inst, enqueueTimeS)
	}
}

func (d *Daemon) popPending(ctx context.Context) (catalog.Instance, int64, bool) {
	for {
		d.mu.Lock()
		if len(d.pendingQueue) > 0 {
			e := d.pendingQueue[0]
			d.pendingQueue = d.pendingQueue[1:]
			delete(d.pendingSet, e.instance.InstanceID)
			d.mu.Unlock()
			return e.instance, e.enqueueTimeS, true
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return catalog.Instance{}, 0, false
		case <-d.notify:
		}
	}
}

func (d *Daemon) processInstance(ctx context.Context, inst catalog.Instance, enqueueTimeS int64) {
	id := inst.InstanceID
	ctx = glog.WithRequestID(ctx, d.runID+":"+id)

	// re-check working_set: a late duplicate enqueue may have raced a worker
	// that already claimed this instance via an earlier pending entry.
	d.mu.Lock()
	if _, ok := d.workingSet[id]; ok {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	checker, err := NewInstanceChecker(ctx, d.client, inst)
	if err != nil {
		glog.Warningf("failed to init instance checker, instance_id=%s err=%v", id, err)
		return
	}

	nowMs := time.Now().UnixMilli()
	if err := Prepare(ctx, d.client, id, d.lesseeIPPort, d.checkLeaseMs, nowMs); err != nil {
		if errors.Is(err, ErrLeaseConflict) {
			glog.V(1).Infof("lease held elsewhere, dropping this cycle, instance_id=%s", id)
		} else {
			glog.Warningf("prepare failed, instance_id=%s err=%v", id, err)
		}
		return
	}

	stats.CheckerEnqueueCostSeconds.WithLabelValues(id).Set(float64(time.Now().Unix() - enqueueTimeS))

	d.mu.Lock()
	d.workingSet[id] = checker
	d.mu.Unlock()

	outcome := d.runCheck(ctx, checker, id)

	d.mu.Lock()
	delete(d.workingSet, id)
	d.mu.Unlock()

	if checker.Stopped() {
		// lease lost mid-check: no finish, record remains for the new lessee.
		return
	}
	if outcome.unrecoverable {
		// transport failure: no finish, the lease expires naturally.
		return
	}

	finishMs := time.Now().UnixMilli()
	if err := Finish(ctx, d.client, id, d.lesseeIPPort, outcome.success, finishMs, finishMs); err != nil {
		glog.Warningf("finish failed, instance_id=%s err=%v", id, err)
	}
}

type checkOutcome struct {
	success       bool
	unrecoverable bool
}

func (d *Daemon) runCheck(ctx context.Context, checker *InstanceChecker, id string) checkOutcome {
	start := time.Now()

	total, fwdErr := checker.DoCheck(ctx)
	success := fwdErr == nil
	unrecoverable := fwdErr != nil && !errors.Is(fwdErr, ErrObjectsMissing)

	if !unrecoverable && d.enableInvertedCheck && !checker.Stopped() {
		invStats, invErr := checker.DoInvertedCheck(ctx)
		total.NumScanned += invStats.NumScanned
		total.NumCheckFailed += invStats.NumCheckFailed
		if invErr != nil {
			// Unlike the forward check's ErrObjectsMissing, any inverted-check
			// failure (confirmed orphan or transport error alike) skips finish
			// for this cycle, matching the original checker's do_inverted_check
			// control flow: it never distinguishes the two, it just returns
			// non-zero and the caller drops straight through without calling
			// finish().
			success = false
			unrecoverable = true
		}
	}

	stats.CheckerNumScanned.WithLabelValues(id).Set(float64(total.NumScanned))
	stats.CheckerNumScannedWithSegment.WithLabelValues(id).Set(float64(total.NumScannedWithSegment))
	stats.CheckerNumCheckFailed.WithLabelValues(id).Set(float64(total.NumCheckFailed))
	stats.CheckerInstanceVolume.WithLabelValues(id).Set(float64(total.InstanceVolume))
	stats.CheckerCheckCostSeconds.WithLabelValues(id).Set(time.Since(start).Seconds())

	return checkOutcome{success: success, unrecoverable: unrecoverable}
}

func (d *Daemon) runLeaseRenewal(ctx context.Context) {
	defer d.wg.Done()
	interval := time.Duration(d.leaseExpiredMs/3) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.renewLeases(ctx)
		}
	}
}

func (d *Daemon) renewLeases(ctx context.Context) {
	d.mu.Lock()
	ids := make([]string, 0, len(d.workingSet))
	for id := range d.workingSet {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	for _, id := range ids {
		if err := Lease(ctx, d.client, id, d.lesseeIPPort, d.leaseExpiredMs, nowMs); err != nil {
			d.mu.Lock()
			checker, ok := d.workingSet[id]
			d.mu.Unlock()
			if ok {
				checker.Stop()
				glog.Warningf("lease lost, stopping checker, instance_id=%s", id)
			}
		}
	}
}

func (d *Daemon) runInspector(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(time.Duration(d.scanIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		d.inspectOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Daemon) inspectOnce(ctx context.Context) {
	instances, err := ListInstances(ctx, d.client)
	if err != nil {
		glog.Warningf("inspector failed to list instances: %v", err)
		return
	}
	nowMs := time.Now().UnixMilli()
	for _, inst := range instances {
		if d.filter.FilterOut(inst.InstanceID) {
			continue
		}
		DoInspect(ctx, d.client, inst, d.reservedBufferDays, nowMs)
	}
}
