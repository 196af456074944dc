// Package render draws projected results and request states for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pharmaguard-client/internal/archive"
	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/projector"
)

// BarWidth is the number of cells in the risk bar.
const BarWidth = 20

// Renderer renders views using the color profile of its output.
type Renderer struct {
	r *lipgloss.Renderer

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	section lipgloss.Style
	card    lipgloss.Style
	failure lipgloss.Style
}

// New creates a renderer for output written to w.
func New(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		r:       r,
		title:   r.NewStyle().Bold(true),
		label:   r.NewStyle().Bold(true).Width(22),
		muted:   r.NewStyle().Foreground(lipgloss.Color(string(projector.Gray))),
		section: r.NewStyle().Bold(true).Underline(true).MarginTop(1),
		card:    r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color(string(projector.Red))),
	}
}

// View renders one result card. Detail sections appear only when v.Expanded is set.
func (r *Renderer) View(v projector.View) string {
	risk := r.r.NewStyle().Bold(true).Foreground(lipgloss.Color(string(v.RiskColor)))

	lines := []string{
		r.title.Render(v.Drug),
		r.row("Risk", risk.Render(v.RiskLabel)),
		r.row("", risk.Render(Bar(v.RiskBar))+fmt.Sprintf(" %d%%", v.RiskBar)),
		r.row("Confidence", v.Confidence),
		r.row("Severity", v.Severity),
	}

	if v.Expanded {
		lines = append(lines,
			r.section.Render("Pharmacogenomic profile"),
			r.row("Primary gene", v.Profile.PrimaryGene),
			r.row("Diplotype", v.Profile.Diplotype),
			r.row("Phenotype", v.Profile.Phenotype),
		)
		for _, variant := range v.Profile.Variants {
			lines = append(lines, r.row("Variant", fmt.Sprintf("%s %s (%s) %s",
				variant.Gene, variant.Allele, variant.RSID, variant.Phenotype)))
		}
		lines = append(lines,
			r.section.Render("Clinical recommendation"),
			v.Recommendation,
			r.section.Render("Explanation"),
			v.Explanation,
			r.section.Render("Analysis"),
			r.row("Patient", v.PatientID),
			r.row("Timestamp", v.Timestamp),
			r.row("VCF parsed", v.VCFParsed),
		)
	} else {
		lines = append(lines, r.muted.Render("(details hidden, use --expand)"))
	}

	return r.card.Render(strings.Join(lines, "\n"))
}

// State renders a request state. Succeeded states render every result.
func (r *Renderer) State(state domain.RequestState, expanded bool) string {
	switch state.Phase {
	case domain.PhasePending:
		return r.muted.Render("Analyzing...")
	case domain.PhaseFailed:
		return r.failure.Render("Error: ") + state.Message
	case domain.PhaseSucceeded:
		views := projector.ProjectOutcome(state.Outcome, expanded)
		cards := make([]string, 0, len(views))
		for _, v := range views {
			cards = append(cards, r.View(v))
		}
		return lipgloss.JoinVertical(lipgloss.Left, cards...)
	default:
		return ""
	}
}

// HistoryTimeFormat is the layout of the history DATE column.
const HistoryTimeFormat = "2006-01-02 15:04"

// History renders archived reports as a table, newest first as given.
func (r *Renderer) History(reports []*archive.Report) string {
	header := r.r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.r.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(reports))
	colors := make([]projector.Color, 0, len(reports))
	for _, report := range reports {
		label := projector.Fallback(nonEmpty(report.RiskLabel), projector.UnknownLabel)
		rows = append(rows, []string{
			report.ID,
			report.CreatedAt.Local().Format(HistoryTimeFormat),
			projector.Fallback(nonEmpty(report.Drug), projector.NotAvailable),
			label,
			fmt.Sprintf("%d", report.ResultCount),
		})
		colors = append(colors, projector.RiskColor(label))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.muted).
		Headers("ID", "DATE", "DRUG", "RISK", "RESULTS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 3:
				return cell.Foreground(lipgloss.Color(string(colors[row])))
			default:
				return cell
			}
		})
	return t.String()
}

// Notice renders a confirmation line.
func (r *Renderer) Notice(message string) string {
	return r.r.NewStyle().Foreground(lipgloss.Color(string(projector.Green))).Render("✓ ") + message
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Renderer) row(label, value string) string {
	return r.label.Render(label) + value
}

// Bar draws a risk bar filled to percent.
func Bar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * BarWidth / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", BarWidth-filled)
}
