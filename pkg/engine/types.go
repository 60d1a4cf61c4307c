package engine

import (
	"fmt"
	"time"

	"github.com/ccsimage/ccs-install/pkg/iu"
)

// Direction is the kind of change an action makes.
type Direction string

const (
	// DirectionUninstall removes a unit.
	DirectionUninstall Direction = "uninstall"

	// DirectionInstall adds a unit.
	DirectionInstall Direction = "install"
)

// Validate checks if the direction is valid.
func (d Direction) Validate() error {
	switch d {
	case DirectionUninstall, DirectionInstall:
		return nil
	default:
		return fmt.Errorf("invalid direction: %q", d)
	}
}

// Reason records why an action was planned.
type Reason string

const (
	// ReasonConflict marks an uninstall of an installed unit that shares
	// name and major.minor with a requested unit but differs from it.
	ReasonConflict Reason = "conflict"

	// ReasonRequested marks an action the caller asked for directly.
	ReasonRequested Reason = "requested"
)

// Action is a single install or uninstall of one unit.
type Action struct {
	Unit      iu.Unit   `json:"unit"`
	Direction Direction `json:"direction"`
	Reason    Reason    `json:"reason"`
}

// String renders the action as "direction unit".
func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.Direction, a.Unit)
}

// ActionPlan is the outcome of planning: which units to remove and which to
// add. All uninstalls must run before any install.
type ActionPlan struct {
	// Installed is the observed installed set the plan was computed against.
	Installed *iu.Set

	// Conflicting is the subset of Installed that clashes with a requested
	// install at ConflictPrecision.
	Conflicting *iu.Set

	// Uninstall is Conflicting followed by the explicitly requested uninstalls.
	Uninstall *iu.Set

	// Install is the requested installs not already present exactly.
	Install *iu.Set
}

// Actions returns every uninstall followed by every install.
func (p *ActionPlan) Actions() []Action {
	actions := make([]Action, 0, p.Uninstall.Len()+p.Install.Len())
	for _, u := range p.Uninstall.Units() {
		reason := ReasonRequested
		if p.Conflicting.Contains(u) {
			reason = ReasonConflict
		}
		actions = append(actions, Action{Unit: u, Direction: DirectionUninstall, Reason: reason})
	}
	for _, u := range p.Install.Units() {
		actions = append(actions, Action{Unit: u, Direction: DirectionInstall, Reason: ReasonRequested})
	}
	return actions
}

// Empty reports whether the installed set has already converged.
func (p *ActionPlan) Empty() bool {
	return p.Uninstall.Len() == 0 && p.Install.Len() == 0
}

// Summary returns counts and canonical unit lists for reporting.
func (p *ActionPlan) Summary() PlanSummary {
	return PlanSummary{
		Installed:   p.Installed.Strings(),
		Conflicting: p.Conflicting.Strings(),
		Uninstall:   p.Uninstall.Strings(),
		Install:     p.Install.Strings(),
	}
}

// PlanSummary is the serializable view of an ActionPlan.
type PlanSummary struct {
	Installed   []string `json:"installed"`
	Conflicting []string `json:"conflicting"`
	Uninstall   []string `json:"uninstall"`
	Install     []string `json:"install"`
}

// Request carries the caller's intent as raw identifier strings.
type Request struct {
	// Install lists units that should be present.
	Install []string

	// Uninstall lists units that should be removed.
	Uninstall []string

	// DryRun stops after planning.
	DryRun bool
}

// Result describes a finished reconciliation run.
type Result struct {
	// RunID identifies the run in logs and the journal.
	RunID string `json:"run_id"`

	// Plan is the computed plan.
	Plan *ActionPlan `json:"-"`

	// Summary is the serializable plan.
	Summary PlanSummary `json:"plan"`

	// Completed lists the actions that succeeded, in order.
	Completed []Action `json:"completed"`

	// DryRun is true when no action was executed.
	DryRun bool `json:"dry_run"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}
