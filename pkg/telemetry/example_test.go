package telemetry_test

import (
	"context"
	"fmt"
	"io"

	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// Example_basicSetup demonstrates telemetry setup for a run.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"
	cfg.Logging.Output = io.Discard

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	tel.Logger.Info().Msg("Application started")

	fmt.Println(tel.Config.Tracing.Exporter)
	// Output: none
}

// Example_structuredLogging demonstrates the logger helpers.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig().Logging
	cfg.Format = "json"

	logger := telemetry.NewLogger(cfg)
	logger = telemetry.WithComponent(logger, "director")
	logger = telemetry.WithUnit(logger, "com.ti.cgt.c2000.8.linux/18.12.4")

	logger.Debug().Msg("Not shown at info level")
	logger.Info().Msg("Installing")

	// Output varies, no output specified
}
