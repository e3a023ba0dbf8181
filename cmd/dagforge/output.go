package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/dagforge/internal/graph"
	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/state"
	"github.com/ShayCichocki/dagforge/internal/validation"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	statusStyles = map[models.IterationStatus]lipgloss.Style{
		models.IterationInitial:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		models.IterationImproved:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		models.IterationNoChange:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.IterationRegressed:  lipgloss.NewStyle().Foreground(lipgloss.Color("202")),
		models.IterationParseError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// printResult writes a human-readable validation report.
func printResult(w io.Writer, name string, r validation.Result) {
	if r.Valid() {
		fmt.Fprintf(w, "%s %s is valid", color.GreenString("✓"), name)
	} else {
		fmt.Fprintf(w, "%s %s has %d error(s)", color.RedString("✗"), name, len(r.Errors))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, ", %d warning(s)", len(r.Warnings))
	}
	fmt.Fprintln(w)

	if r.Degraded {
		fmt.Fprintf(w, "%s semantic validation unavailable (%s); schema checks only\n",
			color.YellowString("!"), r.SemanticError)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("error"), e)
	}
	for _, e := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("warn "), e)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderIterations lays out a repair audit trail as a table.
func renderIterations(iters []models.RepairIteration) string {
	header := []string{"#", "STATUS", "ERRORS", "WARNINGS", "REDUCTION", "DETAIL"}
	rows := make([][]string, 0, len(iters))
	for _, it := range iters {
		reduction := "-"
		if it.ErrorReduction != nil {
			reduction = strconv.Itoa(*it.ErrorReduction)
		}
		rows = append(rows, []string{
			strconv.Itoa(it.Iteration),
			string(it.Status),
			strconv.Itoa(it.ErrorCount),
			strconv.Itoa(it.WarningCount),
			reduction,
			truncate(it.Detail, 60),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(header, widths, func(int) lipgloss.Style { return headerStyle }))
	for i, row := range rows {
		status := iters[i].Status
		b.WriteString("\n")
		b.WriteString(renderRow(row, widths, func(col int) lipgloss.Style {
			if col == 1 {
				if s, ok := statusStyles[status]; ok {
					return s
				}
			}
			return lipgloss.NewStyle()
		}))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style func(col int) lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = cellStyle.Width(widths[i] + 2).Render(style(i).Render(cell))
	}
	return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
}

// printRepairSummary writes the outcome line and iteration table.
func printRepairSummary(w io.Writer, res *repair.Result) {
	fmt.Fprintln(w, renderIterations(res.Iterations))
	fmt.Fprintln(w)

	switch res.Outcome {
	case repair.OutcomeConverged:
		fmt.Fprintf(w, "%s converged after %d attempt(s)\n", color.GreenString("✓"), len(res.Iterations)-1)
		if order := runOrder(res.FinalSpec); order != "" {
			fmt.Fprintln(w, "run order: "+order)
		}
	case repair.OutcomeAborted:
		fmt.Fprintf(w, "%s aborted: %s\n", color.RedString("✗"), res.AbortReason)
	default:
		fmt.Fprintf(w, "%s %s with %d error(s) remaining\n",
			color.YellowString("!"), res.Outcome, len(res.FinalValidation.Errors))
	}
	fmt.Fprintln(w, dimStyle.Render("run "+res.RunID))
}

// runOrder renders the task ids in dependency order, or "" when the tasks
// form a cycle.
func runOrder(spec *models.Specification) string {
	if spec == nil {
		return ""
	}
	g := graph.New()
	g.Build(spec.Tasks)
	order, err := g.TopologicalSort()
	if err != nil {
		return ""
	}
	return strings.Join(order, " → ")
}

// printRuns lists stored runs, newest first.
func printRuns(w io.Writer, runs []state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No repair runs recorded.")
		return
	}
	for _, r := range runs {
		mark := color.GreenString("✓")
		if !r.Converged {
			mark = color.RedString("✗")
		}
		outcome := r.Outcome
		if r.AbortReason != "" {
			outcome += " (" + r.AbortReason + ")"
		}
		fmt.Fprintf(w, "%s %s  %-24s %-24s errors=%d  %s\n",
			mark, r.ID, truncate(r.SpecID, 24), outcome, r.ErrorCount,
			dimStyle.Render(r.StartedAt.Local().Format("2006-01-02 15:04:05")))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
