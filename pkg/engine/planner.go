package engine

import (
	"github.com/ccsimage/ccs-install/pkg/iu"
)

// ConflictPrecision is the number of leading version segments at which an
// installed unit is considered the same release family as a requested one.
//
// The IDE's installation layer distinguishes units at major.minor. Two units
// from the same major.minor family that differ at patch level cannot coexist
// through the p2 director command line (the GUI tolerates them), so the
// installed sibling has to be removed first.
const ConflictPrecision = 2

// Fails to compile if ConflictPrecision drops below 1.
var _ = [ConflictPrecision - 1]struct{}{}

// Plan computes the uninstall and install sets that converge installed to
// the requested state.
//
// An installed unit conflicts when some requested install differs from it
// exactly but matches it at ConflictPrecision. Units already installed exactly
// are neither uninstalled for conflict nor installed again.
func Plan(installed, requestedInstall, requestedUninstall *iu.Set) *ActionPlan {
	conflicting := iu.NewSet()
	for _, have := range installed.Units() {
		for _, want := range requestedInstall.Units() {
			if conflicts(have, want) {
				conflicting.Add(have)
				break
			}
		}
	}

	return &ActionPlan{
		Installed:   iu.NewSet(installed.Units()...),
		Conflicting: conflicting,
		Uninstall:   conflicting.Union(requestedUninstall),
		Install:     requestedInstall.Difference(installed),
	}
}

func conflicts(have, want iu.Unit) bool {
	if have.Equal(want) {
		return false
	}
	// ApproximatelyEqual only fails for precision < 1, ruled out above.
	same, _ := iu.ApproximatelyEqual(have, want, ConflictPrecision)
	return same
}
