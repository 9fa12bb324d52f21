// Package src implements the interactive SpecGen panel.
package src

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/Protocol-Lattice/specgen/src/host"
	"github.com/Protocol-Lattice/specgen/src/protocol"
	"github.com/Protocol-Lattice/specgen/src/session"
	"github.com/Protocol-Lattice/specgen/src/ui"
)

// maxNotices bounds the notification history shown under the panes.
const maxNotices = 3

// hostMsg carries the responses of one host call back into Update.
type hostMsg struct {
	in  protocol.Inbound
	out []protocol.Outbound
}

// structureMsg reports fresh context statistics for the status bar.
type structureMsg struct {
	entries int
	tokens  int
	err     error
}

// workspaceChangedMsg is sent for each file event under the workspace root.
type workspaceChangedMsg struct {
	path string
}

// Options configures the panel.
type Options struct {
	// SessionID labels the status bar. A random id is used when empty.
	SessionID string
	Model     string
	Logger    *slog.Logger
}

type model struct {
	ctx     context.Context
	host    *host.Host
	session *session.Session
	log     *slog.Logger

	sessionID string
	modelName string
	focus     ui.Focus
	loadingOp string
	notices   []ui.Notice
	diff      string
	entries   int
	tokens    int
	changes   chan string

	plan     list.Model
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	style    ui.Styles
}

// NewModel builds the panel around h. The returned model is ready for tea.NewProgram.
func NewModel(ctx context.Context, h *host.Host, opts Options) *model {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Plan"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)

	ta := textarea.New()
	ta.Placeholder = "Describe the feature you want to build..."
	ta.Focus()
	ta.SetHeight(3)

	st := ui.NewStyles()

	vp := viewport.New(0, 0)

	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = st.Thinking

	return &model{
		ctx:       ctx,
		host:      h,
		session:   session.New(),
		log:       log,
		sessionID: id,
		modelName: opts.Model,
		focus:     ui.FocusPrompt,
		changes:   make(chan string, 16),
		plan:      l,
		textarea:  ta,
		viewport:  vp,
		spinner:   s,
		style:     st,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.structureCmd(), m.watchCmd(), m.waitForChange())
}
