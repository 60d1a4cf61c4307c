package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ccsimage/ccs-install/pkg/director"
	"github.com/ccsimage/ccs-install/pkg/installer"
	"github.com/ccsimage/ccs-install/pkg/iu"
)

// Environment variables read by ApplyEnv.
const (
	EnvInstall   = "INSTALL_IUS"
	EnvUninstall = "UNINSTALL_IUS"
	EnvPrefix    = "CCS_PREFIX"
	EnvDisplay   = "CCS_DISPLAY"
	EnvLogLevel  = "LOG_LEVEL"
)

// Default returns the settings used when nothing else is configured.
func Default() *Settings {
	return &Settings{
		Prefix:        "/opt/ti",
		Components:    []string{"PF_C28"},
		Repository:    director.DefaultRepository,
		Link:          "/usr/local/bin/ccstudio",
		UpdateTimeout: 30 * time.Minute,
		Display: DisplaySettings{
			Name:   ":0",
			Screen: "1024x768x16",
			VNC:    true,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		Trace: TraceSettings{
			Exporter: "none",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	return s, nil
}

// ApplyEnv overlays values from the environment. lookup is usually
// os.LookupEnv. Unit lists are split on whitespace.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvInstall); ok {
		s.Install = strings.Fields(v)
	}
	if v, ok := lookup(EnvUninstall); ok {
		s.Uninstall = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix); ok && v != "" {
		s.Prefix = v
	}
	if v, ok := lookup(EnvDisplay); ok && v != "" {
		s.Display.Name = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.Log.Level = strings.ToLower(v)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("iu", validateUnit); err != nil {
		panic(err)
	}
	return v
}

func validateUnit(fl validator.FieldLevel) bool {
	_, err := iu.Parse(fl.Field().String())
	return err == nil
}

// Validate checks the settings and reports every invalid field.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Settings.")
	switch fe.Tag() {
	case "iu":
		return fmt.Sprintf("%s: %q is not a valid unit identifier (want name/version)", field, fe.Value())
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// LauncherPath returns the configured launcher or the one under Prefix.
func (s *Settings) LauncherPath() string {
	if s.Launcher != "" {
		return s.Launcher
	}
	return installer.Launcher(s.Prefix)
}
