package app

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"godfi/domain/cutoff"
)

// RenderText lays the cutoff table out for terminal display: one level per
// block, a cutoff sub-row followed by its power sub-row (specificity for the
// true model, sensitivity for misspecified levels), NONE where no point at or
// above 50% power discriminated.
func RenderText(t cutoff.Table) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Dynamic fit index cutoffs (N = %d, reps = %d, estimator = %s)\n", t.SampleSize, t.Reps, t.Estimator)
	fmt.Fprintln(w, "Level\t\tMagnitude\tSRMR\tRMSEA\tCFI")
	for _, row := range t.Rows {
		fmt.Fprintf(w, "Level-%d\tCutoff\t%s\t%s\t%s\t%s\n",
			row.Level, magnitudeCell(row),
			cutoffCell(row.SRMR), cutoffCell(row.RMSEA), cutoffCell(row.CFI))
		fmt.Fprintf(w, "\t%s\t\t%s\t%s\t%s\n",
			powerLabel(row.Level),
			powerCell(row.SRMR), powerCell(row.RMSEA), powerCell(row.CFI))
	}
	w.Flush()
	return b.String()
}

// RenderMarkdown emits the same table as a markdown document, used by the
// report endpoint and the --markdown flag.
func RenderMarkdown(t cutoff.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dynamic fit index cutoffs\n\n")
	fmt.Fprintf(&b, "N = %d, replications = %d, estimator = %s\n\n", t.SampleSize, t.Reps, t.Estimator)
	fmt.Fprintln(&b, "| Level | Row | Magnitude | SRMR | RMSEA | CFI |")
	fmt.Fprintln(&b, "|-------|-----|-----------|------|-------|-----|")
	for _, row := range t.Rows {
		fmt.Fprintf(&b, "| Level-%d | Cutoff | %s | %s | %s | %s |\n",
			row.Level, magnitudeCell(row),
			cutoffCell(row.SRMR), cutoffCell(row.RMSEA), cutoffCell(row.CFI))
		fmt.Fprintf(&b, "| | %s | | %s | %s | %s |\n",
			powerLabel(row.Level),
			powerCell(row.SRMR), powerCell(row.RMSEA), powerCell(row.CFI))
	}
	return b.String()
}

func powerLabel(level int) string {
	if level == 0 {
		return "Specificity"
	}
	return "Sensitivity"
}

func magnitudeCell(row cutoff.Row) string {
	if row.Level == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", row.Magnitude)
}

func cutoffCell(ic cutoff.IndexCutoff) string {
	if ic.None {
		return "NONE"
	}
	return fmt.Sprintf("%.3f", ic.Value)
}

func powerCell(ic cutoff.IndexCutoff) string {
	if ic.None {
		return "--"
	}
	return fmt.Sprintf("%.0f%%", ic.Power*100)
}
