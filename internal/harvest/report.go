package harvest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ReportFilename is the artifact written into the run's output directory.
const ReportFilename = "download_report.txt"

// maxReportURLLen keeps report lines readable when candidates are inline
// data URIs carrying whole payloads in the URL.
const maxReportURLLen = 96

// Summarize folds per-candidate outcomes into the final run report. The
// summary counts always sum to the number of outcomes supplied.
func Summarize(runID, pageURL, outputDir string, generated time.Time, outcomes []Outcome, skipped int) *Report {
	summary := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeSaved:
			summary.Saved++
		case OutcomeDuplicate:
			summary.Duplicates++
		case OutcomeFailed:
			summary.Failed++
		}
	}
	return &Report{
		RunID:     runID,
		PageURL:   pageURL,
		OutputDir: outputDir,
		Generated: generated,
		Summary:   summary,
		Outcomes:  outcomes,
		Skipped:   skipped,
	}
}

// Render produces the plain-text report persisted alongside the images.
func (r *Report) Render() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Download Report - %s\n", r.Generated.Format(time.RFC3339))
	fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "URL: %s\n\n", r.PageURL)
	fmt.Fprintf(&b, "Saved:      %d\n", r.Summary.Saved)
	fmt.Fprintf(&b, "Duplicates: %d\n", r.Summary.Duplicates)
	fmt.Fprintf(&b, "Failed:     %d\n", r.Summary.Failed)
	fmt.Fprintf(&b, "Total:      %d\n", r.Summary.Total)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped:    %d\n", r.Skipped)
	}
	fmt.Fprintf(&b, "Output dir: %s\n\n", r.OutputDir)
	b.WriteString("Detailed results:\n")
	for _, o := range r.Outcomes {
		b.WriteString(renderOutcome(o))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func renderOutcome(o Outcome) string {
	switch o.Kind {
	case OutcomeSaved:
		size := float64(o.Bytes) / 1024
		if o.Width > 0 && o.Height > 0 {
			return fmt.Sprintf("Saved: %s (%.1f KB, %dx%d) from %s",
				filepath.Base(o.Path), size, o.Width, o.Height, shortURL(o.URL))
		}
		return fmt.Sprintf("Saved: %s (%.1f KB) from %s", filepath.Base(o.Path), size, shortURL(o.URL))
	case OutcomeDuplicate:
		return fmt.Sprintf("Duplicate skipped: %s", shortURL(o.URL))
	case OutcomeFailed:
		return fmt.Sprintf("Failed %s: %s", shortURL(o.URL), o.Reason)
	default:
		return fmt.Sprintf("Unknown outcome for %s", shortURL(o.URL))
	}
}

func shortURL(raw string) string {
	if len(raw) <= maxReportURLLen {
		return raw
	}
	return raw[:maxReportURLLen] + "..."
}
