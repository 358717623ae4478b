package main

import (
	"fmt"
	"strings"
	"time"

	"hydrofreq/internal/diagnose"
	"hydrofreq/internal/outcome"
	"hydrofreq/internal/pipeline"
	"hydrofreq/internal/store"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A90D9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB74D"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E57373"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4A90D9")).
			Padding(0, 1)
)

// maxListed bounds the per-batch failure lines shown in a summary box.
const maxListed = 10

func renderSummary(s pipeline.Summary) string {
	if len(s.Scenarios) == 0 {
		return mutedStyle.Render("No scenarios processed.")
	}
	boxes := make([]string, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		boxes = append(boxes, renderScenario(sc))
	}
	footer := okStyle.Render(fmt.Sprintf("%d/%d scenarios complete", len(s.Scenarios)-s.FatalCount(), len(s.Scenarios)))
	if s.FatalCount() > 0 {
		footer = errStyle.Render(fmt.Sprintf("%d/%d scenarios failed", s.FatalCount(), len(s.Scenarios)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, append(boxes, footer)...)
}

func renderScenario(sc pipeline.ScenarioSummary) string {
	lines := []string{headerStyle.Render(sc.Scenario)}
	if len(sc.Means.Outcomes) > 0 {
		lines = append(lines, reportLine("means", sc.Means))
	}
	if len(sc.Frequency.Outcomes) > 0 {
		lines = append(lines, reportLine("frequency", sc.Frequency))
	}
	lines = append(lines, failureLines(sc.Means)...)
	lines = append(lines, failureLines(sc.Frequency)...)

	if sc.Err != nil {
		lines = append(lines, errStyle.Render("error: "+sc.Err.Error()))
	} else if sc.Output != "" {
		lines = append(lines, okStyle.Render(fmt.Sprintf("%s (%d rows)", sc.Output, sc.Rows)))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("run %s in %s", shortID(sc.RunID), sc.Duration.Round(time.Millisecond))))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func reportLine(stage string, r outcome.Report) string {
	var partial, dropped int
	for _, o := range r.Outcomes {
		if o.Kind == outcome.Partial {
			partial++
		}
		dropped += o.Dropped
	}
	line := fmt.Sprintf("%-9s %d ok, %d partial, %d failed", stage, r.Succeeded()-partial, partial, r.FailedCount())
	if dropped > 0 {
		line += fmt.Sprintf(", %d rows dropped", dropped)
	}
	if r.FailedCount() > 0 {
		return warnStyle.Render(line)
	}
	return line
}

func failureLines(r outcome.Report) []string {
	var lines []string
	for _, o := range r.Outcomes {
		if o.OK() {
			continue
		}
		if len(lines) == maxListed {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("  ... %d more", r.FailedCount()-maxListed)))
			break
		}
		lines = append(lines, errStyle.Render(fmt.Sprintf("  %s: %s", o.Batch, o.Reason())))
	}
	return lines
}

func renderStatus(runs []store.RunSummary) string {
	if len(runs) == 0 {
		return mutedStyle.Render("No runs recorded yet.")
	}
	boxes := make([]string, 0, len(runs))
	for _, r := range runs {
		status := okStyle.Render(r.Status)
		switch r.Status {
		case store.StatusFailed:
			status = errStyle.Render(r.Status)
		case store.StatusRunning:
			status = warnStyle.Render(r.Status)
		}

		lines := []string{
			lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Render(r.Scenario), "  ", status),
			fmt.Sprintf("batches   %d ok, %d failed", r.BatchesOK, r.BatchesFailed),
			fmt.Sprintf("rows      %d dropped, %d cells recovered", r.Dropped, r.Recovered),
		}
		if r.Output != "" {
			lines = append(lines, fmt.Sprintf("output    %s (%d rows)", r.Output, r.Rows))
		}
		if r.Error != "" {
			lines = append(lines, errStyle.Render("error     "+r.Error))
		}
		when := "started " + r.StartedAt.Local().Format(time.DateTime)
		if !r.FinishedAt.IsZero() {
			when += ", took " + r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("run %s %s", shortID(r.ID), when)))
		boxes = append(boxes, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func renderDiagnosis(r *diagnose.Report) string {
	lines := []string{
		headerStyle.Render("Grid coverage"),
		fmt.Sprintf("reference  %s (%d grids)", r.Reference, r.ReferenceGrids),
		fmt.Sprintf("candidate  %s (%d grids)", r.Candidate, r.CandidateGrids),
	}
	if r.Complete() {
		lines = append(lines, okStyle.Render("candidate covers every reference grid"))
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	lines = append(lines, errStyle.Render(fmt.Sprintf("%d grids missing across %d batches:", len(r.Missing), len(r.Batches))))
	names := make([]string, 0, len(r.Batches))
	for _, b := range r.Batches {
		names = append(names, "  "+b.Name)
	}
	lines = append(lines, strings.Join(names, "\n"))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
