package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryTryStartRejectsSecondClaimUntilDone(t *testing.T) {
	var reg Registry

	done1, ok1 := reg.TryStart("idx1")
	assert.True(t, ok1)

	_, ok2 := reg.TryStart("idx1")
	assert.False(t, ok2, "a second claim on the same index must be rejected while the first is in flight")

	done1()

	done3, ok3 := reg.TryStart("idx1")
	assert.True(t, ok3, "once the first claim is released, the index can be claimed again")
	done3()
}

func TestRegistryTryStartAllowsDistinctIndexesConcurrently(t *testing.T) {
	var reg Registry

	done1, ok1 := reg.TryStart("idx1")
	assert.True(t, ok1)
	defer done1()

	done2, ok2 := reg.TryStart("idx2")
	assert.True(t, ok2)
	defer done2()
}
