package contextview

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ctxforge/ctxcache/internal/application"
	"github.com/ctxforge/ctxcache/internal/domain"
)

func renderView(report application.WindowReport, s styles) string {
	lines := []string{
		s.title.Render("Context Window"),
		s.header.Render(fmt.Sprintf("capacity: %d tokens", report.Capacity)),
		budgetLine(report, s),
		residentLine(report, s),
		anchorLine(report.Anchor, s),
	}

	if len(report.Turns) == 0 {
		lines = append(lines, s.empty.Render("No turns fit the current window."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.section.Render(renderTurns(report.Turns, report.Anchor, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func budgetLine(report application.WindowReport, s styles) string {
	label := s.key.Render("budget:")
	bar := renderUsageBar(usedPercent(report.TotalCost, report.Budget), 24, s)
	meta := s.detail.Render(fmt.Sprintf("%d / %d tokens", report.TotalCost, report.Budget))
	runway := s.meta.Render(fmt.Sprintf("(runway %d)", report.Runway))

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		bar,
		" ",
		meta,
		" ",
		runway,
	)

	if report.Runway > 0 && report.Budget-report.TotalCost < report.Runway {
		line += " " + s.warning.Render("[near limit]")
	}

	return line
}

func residentLine(report application.WindowReport, s styles) string {
	label := s.key.Render("resident:")
	if report.Resident == 0 {
		return label + " " + s.empty.Render("cache empty")
	}
	return label + " " + s.detail.Render(fmt.Sprintf("%d tokens cached", report.Resident))
}

func anchorLine(anchor domain.TurnID, s styles) string {
	label := s.key.Render("anchor:")
	if anchor == 0 {
		return label + " " + s.empty.Render("none")
	}
	return label + " " + s.anchor.Render(fmt.Sprintf("turn %d", anchor))
}

func renderTurns(turns []application.WindowTurn, anchor domain.TurnID, s styles) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		marker := "  "
		if turn.ID == anchor {
			marker = s.anchor.Render("* ")
		}
		head := fmt.Sprintf("#%-3d %s", turn.ID, s.role.Render(fmt.Sprintf("%-9s", string(turn.Role))))
		cost := s.meta.Render(fmt.Sprintf("%5d tok", turn.Cost))
		parts = append(parts, marker+head+" "+cost+"  "+s.detail.Render(turn.Preview))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderUsageBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := clampPercent(percent) / 100.0
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func usedPercent(total, budget int) float64 {
	if budget <= 0 {
		return 0
	}
	return float64(total) / float64(budget) * 100
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
