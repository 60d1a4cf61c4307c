package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ccsimage/ccs-install/pkg/engine"
	"github.com/ccsimage/ccs-install/pkg/stores"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes the plan sections and, unless it was a dry run, the
// actions that completed.
func printResult(w io.Writer, r *engine.Result, asJSON bool) error {
	if asJSON {
		return printJSON(w, r)
	}

	printSection(w, "IUs present before", r.Summary.Installed)
	printSection(w, "IUs conflicting with requests", r.Summary.Conflicting)
	printSection(w, "IUs to uninstall", r.Summary.Uninstall)
	printSection(w, "IUs to install", r.Summary.Install)

	if r.DryRun {
		fmt.Fprintln(w, "\n(dry run, nothing changed)")
		return nil
	}

	completed := make([]string, len(r.Completed))
	for i, a := range r.Completed {
		completed[i] = a.String()
	}
	printSection(w, "Completed", completed)
	return nil
}

func printSection(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "\n---- %s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "    %s\n", item)
	}
}

func printRuns(w io.Writer, runs []*stores.Run) {
	fmt.Fprintf(w, "%-36s  %-9s  %-20s  %s\n", "RUN", "STATUS", "STARTED", "REQUEST")
	for _, r := range runs {
		status := string(r.Status)
		if r.DryRun {
			status += "*"
		}
		request := strings.Join(r.Install, " ")
		if len(r.Uninstall) > 0 {
			request += " -" + strings.Join(r.Uninstall, " -")
		}
		fmt.Fprintf(w, "%-36s  %-9s  %-20s  %s\n", r.ID, status, r.StartedAt.Format("2006-01-02 15:04:05"), strings.TrimSpace(request))
	}
}

func printActions(w io.Writer, run *stores.Run, actions []*stores.ActionRecord) {
	fmt.Fprintf(w, "run %s: %s\n", run.ID, run.Status)
	if run.Error != nil {
		fmt.Fprintf(w, "error: %s\n", *run.Error)
	}
	for _, a := range actions {
		line := fmt.Sprintf("  %d  %-9s  %-9s  %-9s  %s", a.Seq, a.Direction, a.Reason, a.Status, a.Unit)
		if a.Error != nil {
			line += "  (" + *a.Error + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
