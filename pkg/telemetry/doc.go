// Package telemetry provides the observability plumbing for ccs-install.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind one Telemetry value built at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/ccs_install.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	r := engine.NewReconciler(d, d, tel.Logger,
//	    engine.WithObserver(tel.Metrics),
//	    engine.WithTracer(tel.Tracer.Tracer()),
//	)
//
// # Logging
//
// Logs go to stderr by default, as console or JSON lines. Command output
// written to stdout is never mixed with log lines.
//
// # Tracing
//
// Exporters: "none" (spans are created but dropped), "stdout" and "otlp"
// (gRPC). Reconciliation produces reconcile.run with reconcile.query,
// reconcile.plan and one reconcile.action child per executed action.
//
// # Metrics
//
// ccs-install is a one-shot process, so metrics are not served over HTTP.
// Instead they are written in the Prometheus text format to
// MetricsConfig.TextfilePath on shutdown. Metrics implements engine.Observer:
//
//	ccs_install_runs_total{status}
//	ccs_install_run_duration_seconds{status}
//	ccs_install_actions_total{direction,status}
//	ccs_install_action_duration_seconds{direction}
//	ccs_install_conflicts_total
//	ccs_install_installed_units
//	ccs_install_planned_actions{direction}
//	ccs_install_errors_total{kind}
package telemetry
