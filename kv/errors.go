package kv

import (
	"github.com/pkg/errors"
)

// CapacityError is the error kind the Retry Controller looks for while
// walking an error's causal chain (spec §4.D, §7, §9): a KV error whose
// remedy is "do less work per transaction".
type CapacityError struct {
	Code int
	msg  string
}

func (e *CapacityError) Error() string { return e.msg }

// Capacity error codes from spec §4.D: transaction-too-large,
// transaction-too-old, commit conflict, process-behind, not-committed,
// commit-unknown-result.
const (
	CodeTransactionTooLarge = 1004
	CodeTransactionTooOld   = 1007
	CodeCommitConflict      = 1020
	CodeProcessBehind       = 1031
	CodeNotCommitted        = 2002
	CodeCommitUnknownResult = 2101
)

var capacityCodeNames = map[int]string{
	CodeTransactionTooLarge: "transaction_too_large",
	CodeTransactionTooOld:   "transaction_too_old",
	CodeCommitConflict:      "commit_conflict",
	CodeProcessBehind:       "process_behind",
	CodeNotCommitted:        "not_committed",
	CodeCommitUnknownResult: "commit_unknown_result",
}

// NewCapacityError builds a CapacityError for one of the known codes, named
// per the KV store's own terminology where recognized.
func NewCapacityError(code int) error {
	name, ok := capacityCodeNames[code]
	if !ok {
		name = "unknown_capacity_code"
	}
	return &CapacityError{Code: code, msg: "kv: " + name}
}

// causer mirrors github.com/pkg/errors' Causer interface so CapacityCode
// can walk chains built with either errors.Wrap or the stdlib's %w.
type causer interface {
	Cause() error
}

type unwrapper interface {
	Unwrap() error
}

// Walk calls visit with err and then, as long as visit returns false, each
// error further down its causal chain (via pkg/errors' Cause() first, then
// the stdlib's Unwrap()). It stops and returns true the first time visit
// returns true, or false once the chain is exhausted. Shared by CapacityCode
// here and by builder's own chain walks, so both agree on how a mixed
// pkg/errors.Wrap / fmt.Errorf("%w") chain gets traversed.
func Walk(err error, visit func(error) bool) bool {
	for err != nil {
		if visit(err) {
			return true
		}
		switch e := err.(type) {
		case causer:
			err = e.Cause()
		case unwrapper:
			err = e.Unwrap()
		default:
			return false
		}
	}
	return false
}

// CapacityCode walks err's causal chain looking for a CapacityError and
// returns its code, per spec §4.D step 5 and §9 ("preserve the causal
// cause -> cause -> ... relation ... classification walks until it finds a
// capacity code").
func CapacityCode(err error) (code int, found bool) {
	Walk(err, func(e error) bool {
		ce, ok := e.(*CapacityError)
		if ok {
			code, found = ce.Code, true
		}
		return ok
	})
	return code, found
}

// Wrap is a thin re-export of pkg/errors.Wrap so callers outside this
// package build causal chains the same way.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}
