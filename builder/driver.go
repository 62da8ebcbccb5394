package builder

import (
	"context"
	"time"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
	"github.com/drpcorg/onlinebuild/recordstore"
	"github.com/drpcorg/onlinebuild/utils"
)

// Driver is the top-level Build Driver (spec §4.F): prime endpoints,
// enumerate missing intervals, pump them through BuildUnbuilt under the
// Retry Controller, apply the rate limit, and mark the index readable.
type Driver struct {
	store  kv.Store
	opener recordstore.Opener
	index  recordstore.IndexIdentity

	recordsRange pk.Interval
	rts          recordstore.RecordTypeSet

	cfg Config
	log utils.Logger
	m   *Metrics

	rate *utils.AvgVal
}

func NewDriver(
	store kv.Store,
	opener recordstore.Opener,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	rts recordstore.RecordTypeSet,
	cfg Config,
	log utils.Logger,
) *Driver {
	return &Driver{
		store:        store,
		opener:       opener,
		index:        index,
		recordsRange: recordsRange,
		rts:          rts,
		cfg:          cfg,
		log:          log,
		m:            NewMetrics(index.Name),
		rate:         utils.NewAvgVal(float64(cfg.RecordsPerSecond)),
	}
}

// RecentRate is the running average of limit divided by each rate-limit
// sleep issued between chunks, seeded with the configured records/second.
// It reflects the rate the sleeps allow, not measured throughput: time
// spent building a chunk is not counted, and with Unlimited it is never
// updated.
func (d *Driver) RecentRate() float64 { return d.rate.Val() }

// Run executes build_index(mark_readable) (spec §4.F).
func (d *Driver) Run(ctx context.Context, markReadable bool) error {
	ctx = utils.WithBuildID(ctx, d.index.Name)
	start := time.Now()
	defer func() { d.m.ObserveWait(time.Since(start).Seconds()) }()

	retry := NewRetry(d.store, d.opener, d.index, d.cfg, d.log, d.m)

	var interior *pk.Interval
	if err := retry.Run(ctx, func(ctx context.Context, store recordstore.Store) error {
		iv, err := BuildEndpoints(ctx, store, d.index, d.recordsRange, d.rts, retry.Limit(), d.m)
		interior = iv
		return err
	}); err != nil {
		return err
	}

	if interior != nil {
		queue, err := d.seedMissing(ctx, retry, *interior)
		if err != nil {
			return err
		}
		if err := d.drain(ctx, retry, queue); err != nil {
			return err
		}
	}

	if !markReadable {
		return nil
	}
	return retry.Run(ctx, func(ctx context.Context, store recordstore.Store) error {
		return store.MarkIndexReadable(ctx, d.index)
	})
}

func (d *Driver) seedMissing(ctx context.Context, retry *Retry, interior pk.Interval) ([]pk.Interval, error) {
	var queue []pk.Interval
	err := retry.Run(ctx, func(ctx context.Context, store recordstore.Store) error {
		queue = nil
		rs := rangeset.New(store.IndexRangeSubspace(d.index))
		for ivl, err := range rs.Missing(ctx, store.Transaction(), interior.Begin, interior.End) {
			if err != nil {
				return err
			}
			queue = append(queue, ivl)
		}
		return nil
	})
	return queue, err
}

func (d *Driver) drain(ctx context.Context, retry *Retry, queue []pk.Interval) error {
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		var realEnd pk.Key
		err := retry.Run(ctx, func(ctx context.Context, store recordstore.Store) error {
			re, err := BuildUnbuilt(ctx, store, d.index, d.recordsRange, d.rts, item.Begin, item.End, retry.Limit(), d.m)
			realEnd = re
			return err
		})

		switch {
		case err == nil:
			if !realEnd.Equal(item.End) {
				queue = append(queue, pk.Interval{Begin: realEnd, End: item.End})
			}
			if err := d.sleepForLimit(ctx, retry.Limit()); err != nil {
				return err
			}

		case isRangeAlreadyBuilt(err):
			d.m.RangeAlreadyBuiltRecoveryInc()
			d.log.InfoCtx(ctx, "recovered RangeAlreadyBuilt, re-querying missing ranges", "begin", item.Begin, "end", item.End)
			missing, rerr := d.seedMissing(ctx, retry, item)
			if rerr != nil {
				return rerr
			}
			queue = append(queue, missing...)
			if err := d.sleepForLimit(ctx, retry.Limit()); err != nil {
				return err
			}

		default:
			return err
		}
	}
	return nil
}

func isRangeAlreadyBuilt(err error) bool {
	_, ok := IsRangeAlreadyBuilt(err)
	return ok
}

// sleepForLimit implements spec §4.F step 4c's rate limit: sleep
// 1000*limit/records_per_second milliseconds, using the post-shrinkage
// limit so throughput adapts along with chunk size.
func (d *Driver) sleepForLimit(ctx context.Context, limit int) error {
	if d.cfg.RecordsPerSecond == Unlimited {
		return nil
	}
	delay := time.Duration(1000*limit/d.cfg.RecordsPerSecond) * time.Millisecond
	if delay > 0 {
		d.rate.Add(float64(limit) / delay.Seconds())
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
