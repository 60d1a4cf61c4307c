package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ccsimage/ccs-install/pkg/iu"
)

const tracerName = "github.com/ccsimage/ccs-install/pkg/engine"

// Reconciler drives a reconciliation run: parse the request, query the
// installed units, plan, then execute uninstalls followed by installs one at
// a time.
type Reconciler struct {
	querier  Querier
	actuator Actuator
	logger   zerolog.Logger
	observer Observer
	journal  Journal
	tracer   trace.Tracer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithJournal sets the run journal.
func WithJournal(j Journal) Option {
	return func(r *Reconciler) {
		r.journal = j
	}
}

// WithTracer sets the tracer used for run and action spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(querier Querier, actuator Actuator, logger zerolog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		querier:  querier,
		actuator: actuator,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		observer: noopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile converges the installed units towards req.
//
// A malformed request fails before anything external is touched. A failed
// query is never treated as an empty installed set. A failed action stops the
// queue; the returned *Error lists the actions that had already completed.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := r.logger.With().Str("run_id", runID).Logger()

	ctx, span := r.tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Bool("run.dry_run", req.DryRun),
	))
	defer span.End()

	r.journalStart(ctx, logger, runID, req)

	result, err := r.run(ctx, logger, runID, req)
	duration := time.Since(start)
	if result != nil {
		result.Duration = duration
	}

	r.observer.ObserveRun(err, duration)
	r.journalFinish(ctx, logger, runID, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("duration", duration).Msg("Reconciliation failed")
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	logger.Info().
		Int("completed", len(result.Completed)).
		Bool("dry_run", result.DryRun).
		Dur("duration", duration).
		Msg("Reconciliation finished")
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, logger zerolog.Logger, runID string, req Request) (*Result, error) {
	requestedInstall, err := iu.ParseSet(req.Install)
	if err != nil {
		return nil, NewMalformedUnitError("invalid install request", err)
	}
	requestedUninstall, err := iu.ParseSet(req.Uninstall)
	if err != nil {
		return nil, NewMalformedUnitError("invalid uninstall request", err)
	}

	installed, err := r.queryInstalled(ctx)
	if err != nil {
		return nil, err
	}

	_, planSpan := r.tracer.Start(ctx, "reconcile.plan")
	plan := Plan(installed, requestedInstall, requestedUninstall)
	planSpan.SetAttributes(
		attribute.Int("plan.conflicting", plan.Conflicting.Len()),
		attribute.Int("plan.uninstall", plan.Uninstall.Len()),
		attribute.Int("plan.install", plan.Install.Len()),
	)
	planSpan.End()

	r.observer.ObservePlan(plan.Installed.Len(), plan.Conflicting.Len(), plan.Uninstall.Len(), plan.Install.Len())
	logger.Info().
		Strs("installed", plan.Installed.Strings()).
		Strs("conflicting", plan.Conflicting.Strings()).
		Strs("uninstall", plan.Uninstall.Strings()).
		Strs("install", plan.Install.Strings()).
		Msg("Computed plan")

	result := &Result{
		RunID:     runID,
		Plan:      plan,
		Summary:   plan.Summary(),
		Completed: []Action{},
		DryRun:    req.DryRun,
	}

	if req.DryRun || plan.Empty() {
		return result, nil
	}

	completed, err := r.execute(ctx, logger, runID, plan.Actions())
	result.Completed = completed
	return result, err
}

// queryInstalled asks the querier for the installed roots and parses them.
func (r *Reconciler) queryInstalled(ctx context.Context) (*iu.Set, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.query")
	defer span.End()

	lines, err := r.querier.ListInstalled(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, NewExternalQueryError("failed to list installed units", err)
	}

	installed, err := ParseInstalled(lines)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("installed.count", installed.Len()))
	return installed, nil
}

// ParseInstalled turns director output into a unit set, skipping blank lines
// and the completion sentinel. Any other unparseable line is an error.
func ParseInstalled(lines []string) (*iu.Set, error) {
	installed := iu.NewSet()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, InstalledSentinel) {
			continue
		}
		u, err := iu.Parse(line)
		if err != nil {
			return nil, NewExternalQueryError("unparseable installed unit", err)
		}
		installed.Add(u)
	}
	return installed, nil
}

// execute runs actions strictly in order and stops at the first failure.
func (r *Reconciler) execute(ctx context.Context, logger zerolog.Logger, runID string, actions []Action) ([]Action, error) {
	completed := make([]Action, 0, len(actions))

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return completed, NewActionExecutionError(action, completed, err)
		}

		actionLogger := logger.With().
			Str("unit", action.Unit.String()).
			Str("direction", string(action.Direction)).
			Str("reason", string(action.Reason)).
			Logger()
		actionLogger.Info().Int("seq", i).Msg("Executing action")

		actionCtx, span := r.tracer.Start(ctx, "reconcile.action", trace.WithAttributes(
			attribute.String("iu.unit", action.Unit.String()),
			attribute.String("iu.direction", string(action.Direction)),
			attribute.Int("action.seq", i),
		))

		started := time.Now()
		err := r.actuator.Apply(actionCtx, action)
		duration := time.Since(started)

		r.observer.ObserveAction(action.Direction, err, duration)
		if r.journal != nil {
			if jerr := r.journal.RecordAction(ctx, runID, i, action, started, err); jerr != nil {
				actionLogger.Warn().Err(jerr).Msg("Failed to journal action")
			}
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			actionLogger.Error().Err(err).Dur("duration", duration).Msg("Action failed")
			return completed, NewActionExecutionError(action, completed, err)
		}

		span.End()
		actionLogger.Info().Dur("duration", duration).Msg("Action completed")
		completed = append(completed, action)
	}

	return completed, nil
}

func (r *Reconciler) journalStart(ctx context.Context, logger zerolog.Logger, runID string, req Request) {
	if r.journal == nil {
		return
	}
	if err := r.journal.StartRun(ctx, runID, req); err != nil {
		logger.Warn().Err(err).Msg("Failed to journal run start")
	}
}

func (r *Reconciler) journalFinish(ctx context.Context, logger zerolog.Logger, runID string, err error) {
	if r.journal == nil {
		return
	}
	if jerr := r.journal.FinishRun(ctx, runID, err); jerr != nil {
		logger.Warn().Err(jerr).Msg("Failed to journal run finish")
	}
}
