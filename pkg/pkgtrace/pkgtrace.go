// Package pkgtrace works out which distribution packages an installed tree
// depends on, starting from the file opens recorded by strace.
package pkgtrace

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ccsimage/ccs-install/pkg/execx"
	"github.com/ccsimage/ccs-install/pkg/telemetry"
)

// DefaultExcludes are path prefixes that belong to the product or the build
// user rather than to a distribution package.
var DefaultExcludes = []string{"/opt/ti/", "/home/"}

var quoted = regexp.MustCompile(`"([^"]+)"`)

// ParsePaths returns the absolute paths successfully opened in an strace log,
// in first-seen order and without duplicates. Paths starting with one of
// excludes are dropped.
func ParsePaths(r io.Reader, excludes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "open") {
			continue
		}
		if strings.Contains(strings.ToLower(line), "no such file") {
			continue
		}

		m := quoted.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		p := m[1]

		if _, ok := seen[p]; ok {
			continue
		}
		if !strings.HasPrefix(p, "/") || hasAnyPrefix(p, excludes) {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return paths, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Resolver maps files to the packages that own them using dpkg.
type Resolver struct {
	runner   execx.Runner
	logger   zerolog.Logger
	excludes []string
}

// NewResolver creates a Resolver. A nil excludes uses DefaultExcludes.
func NewResolver(runner execx.Runner, excludes []string, logger zerolog.Logger) *Resolver {
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &Resolver{
		runner:   runner,
		logger:   telemetry.WithComponent(logger, "pkgtrace"),
		excludes: excludes,
	}
}

// Packages reads an strace log and returns the sorted, de-duplicated names
// of the packages owning the files it opened. Files no package owns are
// skipped.
func (r *Resolver) Packages(ctx context.Context, trace io.Reader) ([]string, error) {
	paths, err := ParsePaths(trace, r.excludes)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Int("paths", len(paths)).Msg("Resolving owning packages")

	packages := make(map[string]struct{})
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		owners, err := r.Owners(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, o := range owners {
			packages[o] = struct{}{}
		}
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Owners returns the packages owning path according to `dpkg -S`. A path no
// package owns yields nil.
func (r *Resolver) Owners(ctx context.Context, path string) ([]string, error) {
	result, err := r.runner.Run(ctx, execx.Command{
		Name:    "dpkg",
		Args:    []string{"-S", path},
		Capture: true,
	})
	if err != nil {
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Debug().Str("path", path).Msg("No package owns path")
			return nil, nil
		}
		return nil, fmt.Errorf("dpkg -S %s: %w", path, err)
	}
	return parseOwners(result.Stdout), nil
}

// parseOwners handles output lines of the form "pkg1, pkg2:arch: /path".
// Diversion notes are ignored.
func parseOwners(out string) []string {
	var owners []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "diversion ") {
			continue
		}
		i := strings.LastIndex(line, ":")
		if i <= 0 {
			continue
		}
		for _, name := range strings.Split(line[:i], ",") {
			if name = strings.TrimSpace(name); name != "" {
				owners = append(owners, name)
			}
		}
	}
	return owners
}
