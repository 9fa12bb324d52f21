package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const Logo = `
███████╗██████╗ ███████╗ ██████╗ ██████╗ ███████╗███╗   ██╗
██╔════╝██╔══██╗██╔════╝██╔════╝██╔════╝ ██╔════╝████╗  ██║
███████╗██████╔╝█████╗  ██║     ██║  ███╗█████╗  ██╔██╗ ██║
╚════██║██╔═══╝ ██╔══╝  ██║     ██║   ██║██╔══╝  ██║╚██╗██║
███████║██║     ███████╗╚██████╗╚██████╔╝███████╗██║ ╚████║
╚══════╝╚═╝     ╚══════╝ ╚═════╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝
                  S P E C  ·  T O  ·  C O D E
`

// Render generates the full UI string based on the provided state.
func Render(s State, styles Styles) string {
	header := RenderHeader(styles)
	body := renderBody(s, styles)
	footer := RenderFooter(s, styles)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// RenderHeader renders the logo block.
func RenderHeader(styles Styles) string {
	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AD8CFF")).Bold(true).
		Background(lipgloss.Color("#000000")).UnsetBackground()
	subtitle := styles.Header.Render("Protocol Lattice · SpecGen")
	styledLogo := logoStyle.Render(Logo)

	return lipgloss.JoinVertical(lipgloss.Left, styledLogo, subtitle)
}

// RenderFooter renders the key help line for the focused pane.
func RenderFooter(s State, styles Styles) string {
	help := "ctrl+c: quit | tab: switch pane"
	switch s.Focus {
	case FocusPrompt:
		help += " | enter: generate plan"
	case FocusPlan:
		help += " | enter: generate code"
	}
	if s.HasCode {
		help += " | ctrl+a: apply"
	}
	return styles.Footer.Render(help)
}

func renderBody(s State, styles Styles) string {
	prompt := styles.Textarea
	planBox := styles.List
	if s.Focus == FocusPlan {
		prompt = prompt.BorderForeground(lipgloss.Color("#555"))
	} else {
		planBox = planBox.BorderForeground(lipgloss.Color("#555"))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.Subtitle.Render(fmt.Sprintf("Workspace: %s", s.Workspace)),
		prompt.Render(s.TextArea.View()),
		planBox.Render(renderPlan(s, styles)),
		renderCode(s, styles),
		renderStatus(s, styles),
		renderThinking(s, styles),
		renderNotices(s, styles),
	)
	return styles.Panel.Render(body)
}

func renderPlan(s State, styles Styles) string {
	if len(s.Plan.Items()) == 0 {
		return styles.Subtle.Render("No plan yet. Describe a feature and press enter.")
	}
	return s.Plan.View()
}

func renderCode(s State, styles Styles) string {
	if s.ActiveFile == "" {
		return ""
	}
	title := styles.ListHeader.Render(s.ActiveFile)
	if s.Failure != "" {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, styles.Error.Render("generation failed: "+s.Failure))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, s.Viewport.View())
}

func renderStatus(s State, styles Styles) string {
	var statusItems []string
	statusItems = append(statusItems, styles.Status.Render(fmt.Sprintf("SESSION: %s", s.SessionID)))
	if s.Model != "" {
		statusItems = append(statusItems, styles.Status.Render(fmt.Sprintf("MODEL: %s", s.Model)))
	}
	statusItems = append(statusItems, styles.StatusRight.Render(fmt.Sprintf("CTX: %d entries (~%d tokens)", s.Entries, s.Tokens)))
	return lipgloss.JoinHorizontal(lipgloss.Top, statusItems...)
}

func renderThinking(s State, styles Styles) string {
	if !s.Loading {
		return ""
	}
	return styles.Thinking.Render(fmt.Sprintf("SpecGen %s %s", s.Spinner.View(), s.LoadingFor))
}

func renderNotices(s State, styles Styles) string {
	if len(s.Notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.Notices))
	for _, n := range s.Notices {
		st := styles.Subtle
		switch n.Level {
		case "error":
			st = styles.Error
		case "warning":
			st = styles.Accent
		case "info":
			st = styles.Success
		}
		lines = append(lines, st.Render(n.Message))
	}
	return strings.Join(lines, "\n")
}
