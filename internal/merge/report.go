package merge

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/normalize"
	"github.com/verdantlab/flora-cli/internal/notify"
)

// maxUnmappedLines caps the unmapped-values section of the report.
const maxUnmappedLines = 20

// Report carries everything the merge completion email needs: the finished
// run, per-field coverage counts from before and after the pass, and the raw
// values no parser could map.
type Report struct {
	Run      *model.Run
	Total    int64
	Before   map[string]int64
	After    map[string]int64
	Unmapped *normalize.Tracker
}

// Subject flags runs that finished with per-record errors.
func (r *Report) Subject() string {
	if r.Run.Errors > 0 {
		return "Flora Merge — Complete (with errors)"
	}
	return "Flora Merge — Complete"
}

// Body renders the plain-text report with timestamps in loc.
func (r *Report) Body(loc *time.Location) string {
	p := message.NewPrinter(language.English)

	started := "N/A"
	if !r.Run.StartedAt.IsZero() {
		started = notify.FormatTime(r.Run.StartedAt, loc)
	}
	finished, duration := "N/A", "N/A"
	if r.Run.FinishedAt != nil {
		finished = notify.FormatTime(*r.Run.FinishedAt, loc)
		secs := int(r.Run.FinishedAt.Sub(r.Run.StartedAt).Seconds())
		duration = fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	triggered := r.Run.TriggeredBy
	if triggered == "" {
		triggered = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Flora Merge Report\n\n")
	fmt.Fprintf(&b, "Started:    %s\n", started)
	fmt.Fprintf(&b, "Finished:   %s\n", finished)
	fmt.Fprintf(&b, "Duration:   %s\n", duration)
	fmt.Fprintf(&b, "Triggered:  %s\n\n", triggered)

	b.WriteString("── Results ──────────────────────────────\n")
	b.WriteString(r.resultsSection(p))

	b.WriteString("\n── Coverage Before -> After ─────────────\n")
	b.WriteString(r.coverageSection(p))

	if lines := r.unmappedLines(); len(lines) > 0 {
		b.WriteString("\n── Unmapped Values (first 20) ──────────\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// resultsSection aligns labels left and comma-grouped counts right.
func (r *Report) resultsSection(p *message.Printer) string {
	rows := []struct {
		label string
		value int
	}{
		{"Plants enriched:", r.Run.NewRecords},
		{"Fields updated:", r.Run.Updated},
		{"Unchanged:", r.Run.Unchanged},
		{"Skipped (no source):", r.Run.Skipped},
		{"Errors:", r.Run.Errors},
	}
	maxLabel, maxNum := 0, 0
	nums := make([]string, len(rows))
	for i, row := range rows {
		nums[i] = p.Sprintf("%d", row.value)
		maxLabel = max(maxLabel, len(row.label))
		maxNum = max(maxNum, len(nums[i]))
	}
	var b strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&b, "  %-*s %*s\n", maxLabel, row.label, maxNum, nums[i])
	}
	return b.String()
}

// coverageSection lists per-field non-null counts before and after the pass,
// in field-map order, skipping fields empty on both sides. Percentages are
// integer-truncated.
func (r *Report) coverageSection(p *message.Printer) string {
	var b strings.Builder
	for _, field := range Fields() {
		before, after := r.Before[field], r.After[field]
		if before == 0 && after == 0 {
			continue
		}
		pctB, pctA := 0, 0
		if r.Total > 0 {
			pctB = int(before * 100 / r.Total)
			pctA = int(after * 100 / r.Total)
		}
		fmt.Fprintf(&b, "  %-30s %6s -> %6s  (%2d%% -> %2d%%)\n",
			field+":", p.Sprintf("%d", before), p.Sprintf("%d", after), pctB, pctA)
	}
	return b.String()
}

// unmappedLines renders the top three unmapped raw values per field, capped
// at maxUnmappedLines overall so a single messy source cannot flood the mail.
func (r *Report) unmappedLines() []string {
	if r.Unmapped == nil {
		return nil
	}
	var lines []string
	for _, field := range r.Unmapped.Fields() {
		for _, vc := range r.Unmapped.Top(field, 3) {
			unit := "plants"
			if vc.Count == 1 {
				unit = "plant"
			}
			lines = append(lines, fmt.Sprintf("  %s: %q (%d %s)", field, vc.Value, vc.Count, unit))
		}
	}
	if len(lines) > maxUnmappedLines {
		lines = lines[:maxUnmappedLines]
	}
	return lines
}
