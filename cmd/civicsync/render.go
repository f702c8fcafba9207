package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"civicsync/models"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const maxTitleWidth = 48

// colorsEnabled honors NO_COLOR and dumb terminals.
func colorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func styled(text string, style lipgloss.Style) string {
	if colorsEnabled() {
		return style.Render(text)
	}
	return text
}

func statusColor(s models.IssueStatus) lipgloss.Color {
	switch s {
	case models.Pending:
		return lipgloss.Color("11")
	case models.InProgress:
		return lipgloss.Color("12")
	case models.Resolved:
		return lipgloss.Color("10")
	default:
		return lipgloss.Color("8")
	}
}

func statusBadge(s models.IssueStatus) string {
	return styled(string(s), lipgloss.NewStyle().Bold(true).Foreground(statusColor(s)))
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func dim(text string) string {
	return styled(text, lipgloss.NewStyle().Foreground(lipgloss.Color("8")))
}

func errorLabel() string {
	return styled("Error:", lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true))
}

func success(w io.Writer, format string, args ...any) {
	icon := styled("✔", lipgloss.NewStyle().Foreground(lipgloss.Color("2")))
	fmt.Fprintf(w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

func warn(w io.Writer, msg string) {
	label := styled("Warning:", lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true))
	fmt.Fprintf(w, "%s %s\n", label, msg)
}

// renderIssueTable lists issues one per row, newest first as given.
func renderIssueTable(issues []models.Issue, voter func(models.Issue) bool) string {
	if len(issues) == 0 {
		return dim("No issues found.")
	}

	headers := []string{"ID", "Status", "Category", "Votes", "Title", "Reported"}
	rows := make([][]string, 0, len(issues))
	for _, it := range issues {
		votes := fmt.Sprintf("%d", it.Votes)
		if voter != nil && voter(it) {
			votes += " ✓"
		}
		rows = append(rows, []string{
			it.ID.Hex(),
			string(it.Status),
			string(it.Category),
			votes,
			truncate(it.Title, maxTitleWidth),
			humanize.Time(it.CreatedAt),
		})
	}

	if !colorsEnabled() {
		var b strings.Builder
		fmt.Fprintln(&b, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(&b, strings.Join(r, "\t"))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(issues) {
				return cellStyle.Foreground(statusColor(issues[row].Status)).Bold(true)
			}
			return cellStyle
		})
	return t.Render()
}

// renderIssue is the detail view of one issue.
func renderIssue(it models.Issue) string {
	label := func(s string) string {
		return styled(s, lipgloss.NewStyle().Foreground(lipgloss.Color("8")))
	}
	title := styled(it.Title, lipgloss.NewStyle().Bold(true))

	lines := []string{
		fmt.Sprintf("%s  %s", title, statusBadge(it.Status)),
		"",
		fmt.Sprintf("%s %s", label("ID:"), it.ID.Hex()),
		fmt.Sprintf("%s %s", label("Category:"), it.Category),
		fmt.Sprintf("%s %s", label("Votes:"), humanize.Comma(int64(it.Votes))),
		fmt.Sprintf("%s %s", label("Reported by:"), it.CreatedBy.DisplayName()),
		fmt.Sprintf("%s %s", label("Reported:"), humanize.Time(it.CreatedAt)),
	}
	if !it.UpdatedAt.IsZero() && !it.UpdatedAt.Equal(it.CreatedAt) {
		lines = append(lines, fmt.Sprintf("%s %s", label("Updated:"), humanize.Time(it.UpdatedAt)))
	}
	loc := fmt.Sprintf("%.5f, %.5f", it.Location.Lat, it.Location.Lng)
	if it.Location.Address != "" {
		loc = it.Location.Address + " (" + loc + ")"
	}
	lines = append(lines, fmt.Sprintf("%s %s", label("Location:"), loc))
	if it.ImageURL != nil {
		lines = append(lines, fmt.Sprintf("%s %s", label("Image:"), *it.ImageURL))
	}
	if it.Description != "" {
		lines = append(lines, "", it.Description)
	}
	if next := it.Status.NextStatuses(); len(next) > 0 {
		names := make([]string, len(next))
		for i, s := range next {
			names[i] = string(s)
		}
		lines = append(lines, "", dim("Next: "+strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

func renderAnalytics(a *models.Analytics) string {
	label := func(s string) string {
		return styled(s, lipgloss.NewStyle().Bold(true))
	}
	lines := []string{
		fmt.Sprintf("%s %s   %s %s   %s %s",
			label("Issues:"), humanize.Comma(a.TotalIssues),
			label("Open:"), humanize.Comma(a.OpenIssues),
			label("Votes:"), humanize.Comma(a.TotalVotes)),
	}
	if len(a.IssuesByCategory) > 0 {
		lines = append(lines, "", label("By category"))
		for _, c := range a.IssuesByCategory {
			lines = append(lines, fmt.Sprintf("  %-16s %s", c.Name, humanize.Comma(c.Value)))
		}
	}
	if len(a.Last7Days) > 0 {
		lines = append(lines, "", label("Last 7 days"))
		for _, d := range a.Last7Days {
			lines = append(lines, fmt.Sprintf("  %s  %s", d.Date, humanize.Comma(d.Count)))
		}
	}
	if len(a.TopVotedIssues) > 0 {
		lines = append(lines, "", label("Most voted"))
		for _, it := range a.TopVotedIssues {
			lines = append(lines, fmt.Sprintf("  %4d  %s", it.Votes, truncate(it.Title, maxTitleWidth)))
		}
	}
	return strings.Join(lines, "\n")
}
