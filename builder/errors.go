package builder

import (
	"errors"
	"fmt"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
)

// RangeAlreadyBuiltError is raised by BuildUnbuilt when BRS.Insert finds the
// interval already fully covered (spec §4.C step 3, §7 class 2). It is
// expected under multi-builder concurrency and after an ambiguous commit;
// callers recover from it rather than treating it as a failure.
type RangeAlreadyBuiltError struct {
	Begin, End pk.Key
}

func (e *RangeAlreadyBuiltError) Error() string {
	return fmt.Sprintf("builder: range [%s, %s) already built", e.Begin, e.End)
}

// IsRangeAlreadyBuilt walks err's causal chain (the same way kv.CapacityCode
// does, spec §9) looking for a RangeAlreadyBuiltError.
func IsRangeAlreadyBuilt(err error) (*RangeAlreadyBuiltError, bool) {
	var found *RangeAlreadyBuiltError
	ok := kv.Walk(err, func(e error) bool {
		rb, is := e.(*RangeAlreadyBuiltError)
		if is {
			found = rb
		}
		return is
	})
	return found, ok
}

// Configuration/metadata errors (spec §7 class 3): never retried, surfaced
// immediately.
var (
	ErrAttemptedBuildOfReadableIndex = errors.New("builder: index is not WRITE_ONLY; refusing to build")
	ErrMetaDataMismatch              = errors.New("builder: index metadata mismatch")
)
