package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/hotelpms/server/internal/models"
)

// render writes payload as json or yaml, or calls text for the text format
func render(w io.Writer, format string, payload interface{}, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "yaml", "yml":
		data, err := yaml.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return text(w)
	}
}

func renderReport(w io.Writer, format string, report *models.DetectionReport) error {
	return render(w, format, report, func(w io.Writer) error {
		run := report.Run
		fmt.Fprintf(w, "Property:   %s\n", run.PropertyID)
		fmt.Fprintf(w, "Run:        %s\n", run.ID)
		fmt.Fprintf(w, "Detected:   %d\n", run.DetectedCount)
		fmt.Fprintf(w, "Stored:     %d\n", run.PersistedCount)
		if run.PersistFailures > 0 {
			fmt.Fprintf(w, "Not stored: %d\n", run.PersistFailures)
		}
		for _, f := range run.FailedDetectors {
			fmt.Fprintf(w, "Failed:     %s (%s)\n", f.Detector, f.Error)
		}
		if len(report.Conflicts) > 0 {
			fmt.Fprintln(w)
			return writeConflictTable(w, report.Conflicts)
		}
		return nil
	})
}

func renderAutoResolve(w io.Writer, format string, resp models.AutoResolveResponse) error {
	return render(w, format, resp, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Auto-resolved %d conflicts for %s\n", resp.ResolvedCount, resp.PropertyID)
		return err
	})
}

func renderList(w io.Writer, format string, list models.ConflictListResponse) error {
	return render(w, format, list, func(w io.Writer) error {
		if len(list.Conflicts) == 0 {
			_, err := fmt.Fprintln(w, "No conflicts")
			return err
		}
		if err := writeConflictTable(w, list.Conflicts); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nShowing %d of %d\n", len(list.Conflicts), list.TotalCount)
		return err
	})
}

func renderStats(w io.Writer, format string, stats *models.ConflictStats) error {
	return render(w, format, stats, func(w io.Writer) error {
		fmt.Fprintf(w, "Property:        %s\n", stats.PropertyID)
		fmt.Fprintf(w, "Total:           %d\n", stats.Total)
		fmt.Fprintf(w, "Auto-resolvable: %d\n", stats.AutoResolvable)
		writeCounts(w, "By type", stats.ByType)
		writeCounts(w, "By severity", stats.BySeverity)
		writeCounts(w, "By status", stats.ByStatus)
		return nil
	})
}

func renderConflict(w io.Writer, format string, c *models.Conflict) error {
	return render(w, format, c, func(w io.Writer) error {
		fmt.Fprintf(w, "%s  %s  %s\n", c.ID, c.Severity, c.Status)
		fmt.Fprintf(w, "  %s\n", c.Description)
		if c.ResolvedBy != nil {
			fmt.Fprintf(w, "  closed by %s", *c.ResolvedBy)
			if c.ResolutionAction != nil && *c.ResolutionAction != "" {
				fmt.Fprintf(w, " (%s)", *c.ResolutionAction)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}

func writeConflictTable(w io.Writer, conflicts []*models.Conflict) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tSTATUS\tDATES\tSUGGESTION")
	for _, c := range conflicts {
		suggestion := "-"
		if c.SuggestedResolution != nil {
			suggestion = c.SuggestedResolution.Action
			if c.SuggestedResolution.AutoResolvable {
				suggestion += " (auto)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%s\n",
			c.ID, c.Severity, c.Status,
			c.ConflictDateStart.Format("2006-01-02"), c.ConflictDateEnd.Format("2006-01-02"),
			suggestion)
	}
	return tw.Flush()
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	fmt.Fprintf(w, "%-16s %s\n", title+":", strings.Join(parts, " "))
}
