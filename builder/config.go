package builder

import (
	"errors"
	"time"

	"github.com/drpcorg/onlinebuild/recordstore"
)

// Unlimited disables the rate cap (spec §6 records_per_second=UNLIMITED).
const Unlimited = 0

// Default knob values from spec §6, matching the source's documented
// defaults (DEFAULT_LIMIT, DEFAULT_RECORDS_PER_SECOND, DEFAULT_MAX_RETRIES).
const (
	DefaultLimit            = 100
	DefaultRecordsPerSecond = 10000
	DefaultMaxRetries       = 100
	DefaultInitialDelay     = 10 * time.Millisecond
	DefaultMaxDelay         = 1000 * time.Millisecond
)

// Config is the builder's flat, immutable set of knobs (spec §6, §9),
// mirroring the teacher's own Options struct: a plain value checked by
// Validate, with no further mutation except the Retry Controller's
// private, single-owner copy of Limit (spec.go.rs §9 "single-owner value,
// not a lock"). NewDriver and NewRetry do not call Validate; the build
// command calls it before constructing a Driver.
type Config struct {
	Limit            int
	RecordsPerSecond int
	MaxRetries       int
	// RecordTypes is the RTS (spec §3). Nil means "infer from the index" —
	// callers resolve that before constructing a Driver; an empty, non-nil
	// set is not the same thing and indexes nothing.
	RecordTypes  recordstore.RecordTypeSet
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns the spec §6 defaults with RecordTypes left nil.
func DefaultConfig() Config {
	return Config{
		Limit:            DefaultLimit,
		RecordsPerSecond: DefaultRecordsPerSecond,
		MaxRetries:       DefaultMaxRetries,
		InitialDelay:     DefaultInitialDelay,
		MaxDelay:         DefaultMaxDelay,
	}
}

var (
	ErrNonPositiveLimit        = errors.New("builder: limit must be positive")
	ErrNonPositiveMaxRetries   = errors.New("builder: max_retries must be positive")
	ErrInvalidRecordsPerSecond = errors.New("builder: records_per_second must be positive or Unlimited")
)

// Validate checks the configuration/metadata invariants spec §7 class 3
// calls out as never-retried. It only reports an error: it has a value
// receiver, so the caller's Config is never modified, and zero delays are
// accepted as they are.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return ErrNonPositiveLimit
	}
	if c.MaxRetries <= 0 {
		return ErrNonPositiveMaxRetries
	}
	if c.RecordsPerSecond != Unlimited && c.RecordsPerSecond <= 0 {
		return ErrInvalidRecordsPerSecond
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return nil
}
