package engine

import (
	"context"
	"time"
)

// InstalledSentinel prefixes the status line the p2 director prints after a
// listing. Lines starting with it are not units.
const InstalledSentinel = "Operation completed"

// Querier reports the currently installed root units as raw lines of text.
type Querier interface {
	ListInstalled(ctx context.Context) ([]string, error)
}

// Actuator performs a single install or uninstall.
type Actuator interface {
	Apply(ctx context.Context, action Action) error
}

// Observer receives reconciliation measurements. Implementations must be
// safe to call with zero values.
type Observer interface {
	// ObservePlan is called once per run after planning.
	ObservePlan(installed, conflicting, uninstall, install int)

	// ObserveAction is called after every executed action.
	ObserveAction(direction Direction, err error, duration time.Duration)

	// ObserveRun is called when a run finishes.
	ObserveRun(err error, duration time.Duration)
}

// Journal records runs and their actions for later inspection. It is an
// audit trail only; installed state is never read back from it.
type Journal interface {
	// StartRun records the beginning of a run.
	StartRun(ctx context.Context, runID string, req Request) error

	// RecordAction records the outcome of one executed action.
	RecordAction(ctx context.Context, runID string, seq int, action Action, started time.Time, err error) error

	// FinishRun records the end of a run.
	FinishRun(ctx context.Context, runID string, err error) error
}

type noopObserver struct{}

func (noopObserver) ObservePlan(int, int, int, int)                {}
func (noopObserver) ObserveAction(Direction, error, time.Duration) {}
func (noopObserver) ObserveRun(error, time.Duration)               {}
