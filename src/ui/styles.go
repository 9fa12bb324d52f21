package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Styles struct {
	Header      lipgloss.Style
	Subtitle    lipgloss.Style
	List        lipgloss.Style
	ListHeader  lipgloss.Style
	Textarea    lipgloss.Style
	Footer      lipgloss.Style
	Accent      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Thinking    lipgloss.Style
	Status      lipgloss.Style
	StatusRight lipgloss.Style
	Panel       lipgloss.Style
	Subtle      lipgloss.Style
	DiffAdd     lipgloss.Style
	DiffDel     lipgloss.Style
	DiffHunk    lipgloss.Style
}

func NewStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555")).
			Faint(true).
			Padding(0, 1),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1),

		List: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#AD8CFF")),

		ListHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AD8CFF")).
			Bold(true).
			Padding(0, 1),

		Textarea: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#AD8CFF")),

		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")).
			Faint(true),

		Accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AD8CFF")),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5C5C")).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3DDC97")).
			Bold(true),

		Thinking: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3DDC97")),

		Status: lipgloss.NewStyle().
			Background(lipgloss.Color("#AD8CFF")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1),

		StatusRight: lipgloss.NewStyle().
			Inherit(lipgloss.NewStyle().
				Background(lipgloss.Color("#AD8CFF")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1)).Align(lipgloss.Right),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#AD8CFF")).Padding(0, 1),

		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")),

		DiffAdd:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3DDC97")),
		DiffDel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5C5C")),
		DiffHunk: lipgloss.NewStyle().Foreground(lipgloss.Color("#00E6B8")),
	}
}

// ColorDiff styles the lines of a unified diff.
func ColorDiff(diff string, styles Styles) string {
	lines := strings.Split(diff, "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = styles.Subtle.Render(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = styles.DiffHunk.Render(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = styles.DiffAdd.Render(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = styles.DiffDel.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
