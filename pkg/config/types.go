package config

import "time"

// Settings holds everything needed to provision the IDE and reconcile its
// installable units.
type Settings struct {
	// Prefix is the installation prefix passed to the installer.
	Prefix string `yaml:"prefix" json:"prefix" validate:"required,startswith=/"`

	// Components lists the installer components to enable.
	Components []string `yaml:"components" json:"components" validate:"dive,required,excludesall=0x2C"`

	// Repository is the p2 repository units are installed from.
	Repository string `yaml:"repository" json:"repository" validate:"required,url"`

	// Launcher overrides the ccstudio executable. Empty means
	// <prefix>/ccs/eclipse/ccstudio.
	Launcher string `yaml:"launcher" json:"launcher" validate:"omitempty,startswith=/"`

	// Link is where the launcher symlink is created. Empty disables it.
	Link string `yaml:"link" json:"link" validate:"omitempty,startswith=/"`

	// WorkDir is where the installer archive is extracted. Empty means a
	// temporary directory removed after the install.
	WorkDir string `yaml:"work_dir" json:"work_dir"`

	// Install and Uninstall are the requested unit identifiers.
	Install   []string `yaml:"install" json:"install" validate:"dive,iu"`
	Uninstall []string `yaml:"uninstall" json:"uninstall" validate:"dive,iu"`

	// WaitForUpdate makes every install wait for the background updater
	// process to come and go.
	WaitForUpdate bool          `yaml:"wait_for_update" json:"wait_for_update"`
	UpdateTimeout time.Duration `yaml:"update_timeout" json:"update_timeout" validate:"gte=0"`

	Display DisplaySettings `yaml:"display" json:"display"`
	Log     LogSettings     `yaml:"log" json:"log"`
	Trace   TraceSettings   `yaml:"trace" json:"trace"`

	// Journal is the SQLite run journal path. Empty disables the journal.
	Journal string `yaml:"journal" json:"journal"`

	// MetricsFile receives Prometheus metrics in text format after each run.
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

// DisplaySettings configures the virtual X display used by the installer.
type DisplaySettings struct {
	Name   string `yaml:"name" json:"name" validate:"required,startswith=:"`
	Screen string `yaml:"screen" json:"screen" validate:"required"`
	VNC    bool   `yaml:"vnc" json:"vnc"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// TraceSettings configures OpenTelemetry export.
type TraceSettings struct {
	Exporter string `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
}
