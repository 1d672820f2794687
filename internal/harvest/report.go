package harvest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/notify"
)

// maxChangeLines caps the change log rendered into a fetch report.
const maxChangeLines = 50

// runTimes renders the Started/Finished footer shown in report bodies.
// Absent timestamps drop their line.
func runTimes(run *model.Run, loc *time.Location) string {
	parts := make([]string, 0, 2)
	if !run.StartedAt.IsZero() {
		parts = append(parts, "Started: "+notify.FormatTime(run.StartedAt, loc))
	}
	if run.FinishedAt != nil {
		parts = append(parts, "Finished: "+notify.FormatTime(*run.FinishedAt, loc))
	}
	return strings.Join(parts, "\n")
}

func pagesLabel(total *int) string {
	if total == nil {
		return "Unknown"
	}
	return strconv.Itoa(*total)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func errorSubject(source string) string {
	return fmt.Sprintf("Flora %s Fetch — Error", titleCase(source))
}

func errorBody(source string, err error, run *model.Run, loc *time.Location) string {
	p := message.NewPrinter(language.English)
	return fmt.Sprintf(
		"The %s plant fetch encountered an unexpected error.\n\n"+
			"Error: %v\n"+
			"Last page reached: %d\n"+
			"Records fetched this run: %s\n\n%s",
		titleCase(source), err, run.CurrentPage,
		p.Sprintf("%d", run.NewRecords),
		runTimes(run, loc),
	)
}

// perenualCompleteReport announces the end of the multi-day catalog crawl.
type perenualCompleteReport struct {
	run   *model.Run
	total int64
	days  int
}

func (r *perenualCompleteReport) Subject() string {
	return "Flora Perenual Fetch Complete"
}

func (r *perenualCompleteReport) Body(loc *time.Location) string {
	p := message.NewPrinter(language.English)
	return fmt.Sprintf(
		"The Perenual plant fetch has finished.\n\n"+
			"Total records fetched: %s\n"+
			"Final page: %d / %s\n"+
			"Total days taken: %d\n\n%s",
		p.Sprintf("%d", r.total),
		r.run.CurrentPage, pagesLabel(r.run.TotalPages),
		r.days,
		runTimes(r.run, loc),
	)
}

// perenualDailyReport summarizes one budget-bounded day of the crawl, or a
// replay that consumed the whole page archive.
type perenualDailyReport struct {
	run      *model.Run
	total    int64
	budget   int
	nextCron time.Time
	replay   bool
}

func (r *perenualDailyReport) Subject() string {
	return "Flora Perenual Fetch — Daily Run Complete"
}

func (r *perenualDailyReport) Body(loc *time.Location) string {
	p := message.NewPrinter(language.English)

	pagesStr, daysStr := "Unknown", "Unknown"
	if r.run.TotalPages != nil {
		remaining := *r.run.TotalPages - r.run.CurrentPage
		if remaining < 0 {
			remaining = 0
		}
		pagesStr = strconv.Itoa(remaining)
		daysStr = "0"
		if remaining > 0 {
			daysStr = strconv.Itoa((remaining + r.budget - 1) / r.budget)
		}
	}

	head := fmt.Sprintf("Today's Perenual fetch has reached the daily API request budget (%d requests).", r.budget)
	if r.replay {
		head = "The Perenual replay has consumed every archived page."
	}

	body := fmt.Sprintf(
		"%s\n\n"+
			"Records fetched today: %s\n"+
			"Total records in source table: %s\n"+
			"Current page: %d / %s\n"+
			"Pages remaining: %s\n"+
			"Estimated days remaining: %s\n\n%s",
		head,
		p.Sprintf("%d", r.run.NewRecords),
		p.Sprintf("%d", r.total),
		r.run.CurrentPage, pagesLabel(r.run.TotalPages),
		pagesStr, daysStr,
		runTimes(r.run, loc),
	)
	if !r.replay {
		body += "\n\nNext run scheduled: " + notify.FormatTime(r.nextCron, loc)
	}
	return body
}

// perenualQuotaReport covers both quota outcomes: the notice sent when no
// retry will follow, and the summary after the final scheduled attempt.
type perenualQuotaReport struct {
	run        *model.Run
	total      int64
	cronHour   int
	retryHours []int
	nextCron   time.Time
}

func (r *perenualQuotaReport) Subject() string {
	return "Flora Perenual Fetch — Quota Not Reset"
}

func (r *perenualQuotaReport) Body(loc *time.Location) string {
	p := message.NewPrinter(language.English)

	var head string
	if len(r.retryHours) > 0 && r.run.RetryCount >= len(r.retryHours) {
		attempts := make([]string, 0, len(r.retryHours)+1)
		for _, h := range append([]int{r.cronHour}, r.retryHours...) {
			attempts = append(attempts, fmt.Sprintf("%02d:00 UTC", h))
		}
		head = fmt.Sprintf(
			"The Perenual daily API quota was unavailable at all scheduled attempts.\n\n"+
				"Attempts: %s — all returned 429.\n"+
				"Quota appears to be on a rolling 24-hour window, not a calendar-day reset.",
			strings.Join(attempts, ", "),
		)
	} else {
		head = fmt.Sprintf("The Perenual daily API quota was not yet available at %02d:00 UTC.", r.cronHour)
	}

	return fmt.Sprintf(
		"%s\n\n"+
			"Current page: %d / %s\n"+
			"Total records in source table: %s\n\n"+
			"%s\n\n"+
			"Next run: %s (daily cron)",
		head,
		r.run.CurrentPage, pagesLabel(r.run.TotalPages),
		p.Sprintf("%d", r.total),
		runTimes(r.run, loc),
		notify.FormatTime(r.nextCron, loc),
	)
}

// CoverageCount is one labelled column tally for the coverage block.
type CoverageCount struct {
	Label string
	Count int64
}

// FetchReport is the structured report for cursor-paged sources: aligned
// result counters, table totals, field coverage, and the change log.
type FetchReport struct {
	SourceTitle      string
	Run              *model.Run
	Changes          []string
	TotalCount       int64
	MatchedCount     int64
	PlantsTotal      int64
	NewPlantsCreated int
	MatchedExisting  int
	Coverage         []CoverageCount
}

func (r *FetchReport) Subject() string {
	kind := "Report"
	if r.Run.Status == model.RunStatusCompleted {
		kind = "Complete"
	}
	return fmt.Sprintf("Flora %s Fetch — %s", r.SourceTitle, kind)
}

func (r *FetchReport) Body(loc *time.Location) string {
	p := message.NewPrinter(language.English)

	started, finished, elapsed := "N/A", "N/A", "N/A"
	if !r.Run.StartedAt.IsZero() {
		started = notify.FormatTime(r.Run.StartedAt, loc)
	}
	if r.Run.FinishedAt != nil {
		finished = notify.FormatTime(*r.Run.FinishedAt, loc)
		if !r.Run.StartedAt.IsZero() {
			d := r.Run.FinishedAt.Sub(r.Run.StartedAt)
			elapsed = fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Flora %s Fetch Report\n\n", r.SourceTitle)
	fmt.Fprintf(&b, "Started:  %s\nFinished: %s\nDuration: %s\n\n", started, finished, elapsed)
	b.WriteString("── Results ──────────────────────────────\n")
	b.WriteString(r.resultsSection(p))
	b.WriteString("\n\n── Totals ───────────────────────────────\n")
	b.WriteString(r.totalsSection(p))
	b.WriteString("\n")
	if cov := r.coverageSection(p); cov != "" {
		b.WriteString("\n── Field Coverage ───────────────────────\n")
		b.WriteString(cov)
		b.WriteString("\n")
	}
	if ch := r.changesSection(p); ch != "" {
		b.WriteString("\n")
		b.WriteString(ch)
		b.WriteString("\n")
	}
	return b.String()
}

type resultLine struct {
	label string
	value int
}

// resultsSection renders the counter block with labels left-aligned and
// comma-grouped numbers right-aligned on a shared column.
func (r *FetchReport) resultsSection(p *message.Printer) string {
	lines := []resultLine{{"New species added:", r.Run.NewRecords}}
	if r.NewPlantsCreated > 0 || r.MatchedExisting > 0 {
		lines = append(lines,
			resultLine{"  New plants created:", r.NewPlantsCreated},
			resultLine{"  Matched existing:", r.MatchedExisting},
		)
	}
	lines = append(lines,
		resultLine{"Updated:", r.Run.Updated},
		resultLine{"Gaps filled:", r.Run.GapFilled},
		resultLine{"Unchanged:", r.Run.Unchanged},
		resultLine{"Skipped:", r.Run.Skipped},
		resultLine{"Errors:", r.Run.Errors},
	)

	labelWidth, numWidth := 0, 0
	for _, l := range lines {
		if len(l.label) > labelWidth {
			labelWidth = len(l.label)
		}
		if n := len(p.Sprintf("%d", l.value)); n > numWidth {
			numWidth = n
		}
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fmt.Sprintf("%-*s %*s", labelWidth, l.label, numWidth, p.Sprintf("%d", l.value))
	}
	return strings.Join(out, "\n")
}

func (r *FetchReport) totalsSection(p *message.Printer) string {
	out := p.Sprintf("Source table:  %d\n", r.TotalCount)
	if r.PlantsTotal > 0 {
		return out + p.Sprintf("Plants table: %d (matched: %d)", r.PlantsTotal, r.MatchedCount)
	}
	return out + p.Sprintf("Matched to plants table: %d", r.MatchedCount)
}

// coverageSection lists how many source rows carry each tracked field,
// hiding fields with no coverage at all. Percentages truncate.
func (r *FetchReport) coverageSection(p *message.Printer) string {
	visible := make([]CoverageCount, 0, len(r.Coverage))
	labelWidth, numWidth := 0, 0
	for _, c := range r.Coverage {
		if c.Count <= 0 {
			continue
		}
		visible = append(visible, c)
		if len(c.Label) > labelWidth {
			labelWidth = len(c.Label)
		}
		if n := len(p.Sprintf("%d", c.Count)); n > numWidth {
			numWidth = n
		}
	}
	if len(visible) == 0 {
		return ""
	}

	lines := make([]string, len(visible))
	for i, c := range visible {
		pct := int64(0)
		if r.TotalCount > 0 {
			pct = c.Count * 100 / r.TotalCount
		}
		lines[i] = fmt.Sprintf("%-*s %*s / %s (%d%%)",
			labelWidth+1, c.Label+":",
			numWidth, p.Sprintf("%d", c.Count),
			p.Sprintf("%d", r.TotalCount), pct)
	}
	return strings.Join(lines, "\n")
}

func (r *FetchReport) changesSection(p *message.Printer) string {
	initial := r.Run.Skipped == 0 && r.Run.NewRecords > 0 &&
		r.Run.Updated == 0 && r.Run.GapFilled == 0
	if initial {
		return p.Sprintf("Initial load complete — %d species imported.", r.Run.NewRecords)
	}
	if len(r.Changes) == 0 {
		return ""
	}
	if len(r.Changes) > maxChangeLines {
		return strings.Join(r.Changes[:maxChangeLines], "\n") +
			fmt.Sprintf("\n...and %d more", len(r.Changes)-maxChangeLines)
	}
	return strings.Join(r.Changes, "\n")
}
