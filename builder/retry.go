package builder

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/recordstore"
	"github.com/drpcorg/onlinebuild/utils"
)

// Retry is the Adaptive Retry Controller (spec §4.D). It owns the one
// mutable value in the whole builder — limit — which is read and written
// only from within Run's call chain (spec §9: "single-owner value, not a
// lock").
type Retry struct {
	store  kv.Store
	opener recordstore.Opener
	index  recordstore.IndexIdentity

	cfg Config
	log utils.Logger
	m   *Metrics

	limit int
}

func NewRetry(store kv.Store, opener recordstore.Opener, index recordstore.IndexIdentity, cfg Config, log utils.Logger, m *Metrics) *Retry {
	return &Retry{
		store:  store,
		opener: opener,
		index:  index,
		cfg:    cfg,
		log:    log,
		m:      m,
		limit:  cfg.Limit,
	}
}

// Limit is the current adaptive row limit. It only ever shrinks within one
// Retry's lifetime.
func (r *Retry) Limit() int { return r.limit }

// Run executes f against a freshly opened recordstore.Store inside a new,
// batch-priority transaction, retrying on capacity errors per spec §4.D.
// f is called with the store still inside its transaction — callers that
// need the raw kv.Transaction (BRS inserts) get it via store.Transaction().
func (r *Retry) Run(ctx context.Context, f func(ctx context.Context, store recordstore.Store) error) error {
	wait := r.cfg.InitialDelay
	var lastErr error

	for tries := 0; ; tries++ {
		err := r.store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
			store, err := r.opener.Open(ctx, tx)
			if err != nil {
				return err
			}
			state, err := store.IndexState(r.index)
			if err != nil {
				return err
			}
			if state != recordstore.WriteOnly {
				return ErrAttemptedBuildOfReadableIndex
			}
			return f(ctx, store)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if tries+1 >= r.cfg.MaxRetries {
			return errors.Wrap(lastErr, "builder: retry budget exhausted")
		}

		code, ok := kv.CapacityCode(err)
		if !ok {
			return err
		}

		r.limit = max(1, 3*r.limit/4)
		r.m.LimitShrinkInc()
		r.m.SetLimit(r.limit)
		r.log.InfoCtx(ctx, "shrinking chunk limit after capacity error", "code", code, "new_limit", r.limit)

		delay := time.Duration(rand.Int63n(int64(wait) + 1))
		wait *= 2
		if wait > r.cfg.MaxDelay {
			wait = r.cfg.MaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
