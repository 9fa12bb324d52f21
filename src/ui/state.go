package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/Protocol-Lattice/specgen/src/plan"
)

// Focus is the pane receiving key input.
type Focus int

const (
	FocusPrompt Focus = iota
	FocusPlan
)

// Notice is a transient notification shown under the panes.
type Notice struct {
	Level   string
	Message string
}

// StepItem is a plan step as shown in the plan list.
type StepItem struct {
	Step      plan.Step
	Active    bool
	Generated bool
	Failed    bool
}

func (s StepItem) Title() string {
	mark := "  "
	switch {
	case s.Active:
		mark = "▶ "
	case s.Failed:
		mark = "✗ "
	case s.Generated:
		mark = "✓ "
	}
	return fmt.Sprintf("%s%s: %s", mark, s.Step.Action, s.Step.File)
}

func (s StepItem) Description() string { return s.Step.Description }
func (s StepItem) FilterValue() string { return s.Step.File }

// State contains all the data required to render the panel.
// This decouples the renderer from the main application logic.
type State struct {
	Focus      Focus
	Workspace  string
	SessionID  string
	Model      string
	Entries    int
	Tokens     int
	Loading    bool
	LoadingFor string
	ActiveFile string
	HasCode    bool
	Failure    string
	Notices    []Notice

	// Bubble Tea models
	Plan     list.Model
	TextArea textarea.Model
	Viewport viewport.Model
	Spinner  spinner.Model
}
