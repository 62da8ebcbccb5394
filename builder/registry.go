package builder

import (
	"context"

	"github.com/drpcorg/onlinebuild/utils"
)

// Registry guards against two Driver.Run calls racing on the same index
// within one process. It is a convenience, not a correctness mechanism —
// the BRS (rangeset) is what makes concurrent builders across processes
// safe (spec §8 scenario 4); Registry just avoids two goroutines in the
// same process redundantly grinding through the same retry loop, wasting
// their own limit-shrink history on each other's capacity errors.
//
// Grounded on the teacher's CMap (utils/cmap.go), used there to coalesce
// concurrent lookups of the same live object by ID.
type Registry struct {
	running utils.CMap[string, struct{}]
}

// TryStart claims index for the caller. ok is false if another Run for the
// same index is already in flight in this process; done must be called
// exactly once, when that build finishes, regardless of outcome.
func (r *Registry) TryStart(index string) (done func(), ok bool) {
	if _, loaded := r.running.LoadOrStore(index, struct{}{}); loaded {
		return func() {}, false
	}
	return func() { r.running.Delete(index) }, true
}

// ErrBuildAlreadyRunning is returned by RunGuarded when Registry already
// has a build in flight for the index.
var ErrBuildAlreadyRunning = errAlreadyRunning("builder: a build is already running for this index in this process")

type errAlreadyRunning string

func (e errAlreadyRunning) Error() string { return string(e) }

// RunGuarded runs build_index through reg, failing fast instead of letting
// two in-process Drivers for the same index contend with each other.
func (d *Driver) RunGuarded(ctx context.Context, reg *Registry, markReadable bool) error {
	done, ok := reg.TryStart(d.index.Name)
	if !ok {
		return ErrBuildAlreadyRunning
	}
	defer done()
	return d.Run(ctx, markReadable)
}
