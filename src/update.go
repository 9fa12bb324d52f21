package src

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Protocol-Lattice/specgen/src/ai"
	"github.com/Protocol-Lattice/specgen/src/prompt"
	"github.com/Protocol-Lattice/specgen/src/protocol"
	"github.com/Protocol-Lattice/specgen/src/session"
	"github.com/Protocol-Lattice/specgen/src/ui"
	"github.com/Protocol-Lattice/specgen/src/workspace"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.viewHeader())
		footerHeight := lipgloss.Height(m.viewFooter())
		hPad := m.style.Panel.GetHorizontalPadding()
		m.width, m.height = msg.Width, msg.Height
		inner := m.width - hPad - 4 // panel and pane borders
		m.textarea.SetWidth(inner)
		rest := m.height - headerHeight - footerHeight - m.textarea.Height() - 10
		if rest < 4 {
			rest = 4
		}
		m.plan.SetSize(inner, rest/2)
		m.viewport.Width = inner
		m.viewport.Height = rest - rest/2
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {

		case "ctrl+c":
			return m, tea.Quit

		case "tab":
			if m.focus == ui.FocusPrompt {
				m.focus = ui.FocusPlan
				m.textarea.Blur()
			} else {
				m.focus = ui.FocusPrompt
				m.textarea.Focus()
			}
			return m, nil

		case "ctrl+a":
			return m, m.apply()

		case "enter":
			if m.focus == ui.FocusPrompt {
				return m, m.generatePlan()
			}
			return m, m.generateCode()
		}

		var cmd tea.Cmd
		if m.focus == ui.FocusPrompt {
			m.textarea, cmd = m.textarea.Update(msg)
		} else {
			m.plan, cmd = m.plan.Update(msg)
		}
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.session.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case hostMsg:
		var cmds []tea.Cmd
		for _, o := range msg.out {
			if cmd := m.receive(o); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		if !m.session.Loading() {
			m.loadingOp = ""
		}
		return m, tea.Batch(cmds...)

	case structureMsg:
		if msg.err != nil {
			m.log.Warn("structure refresh failed", "error", msg.err)
			return m, nil
		}
		m.entries, m.tokens = msg.entries, msg.tokens
		return m, nil

	case workspaceChangedMsg:
		m.log.Debug("workspace changed", "path", msg.path)
		return m, tea.Batch(m.structureCmd(), m.waitForChange())
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *model) generatePlan() tea.Cmd {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return nil
	}
	id := m.session.BeginPlan(text)
	m.loadingOp = "generating plan"
	return tea.Batch(m.call(protocol.Inbound{
		Command:   protocol.GeneratePlan,
		RequestID: uint64(id),
		Text:      text,
	}), m.spinner.Tick)
}

func (m *model) generateCode() tea.Cmd {
	item, ok := m.plan.SelectedItem().(ui.StepItem)
	if !ok {
		return nil
	}
	step := item.Step
	id := m.session.BeginCode(step)
	m.loadingOp = fmt.Sprintf("generating %s", step.File)
	m.diff = ""
	m.refresh()
	return tea.Batch(m.call(protocol.Inbound{
		Command:   protocol.GenerateCode,
		RequestID: uint64(id),
		Step:      &step,
	}), m.spinner.Tick)
}

// apply writes the active file's generated code. Without an entry nothing is sent.
func (m *model) apply() tea.Cmd {
	file := m.session.ActiveFile()
	code, ok := m.session.CodeFor(file)
	if !ok {
		m.notify(ui.Notice{Level: string(protocol.LevelWarning), Message: "Nothing to apply."})
		return nil
	}
	return m.call(protocol.Inbound{Command: protocol.ApplyCode, FilePath: file, Code: code})
}

func (m *model) call(in protocol.Inbound) tea.Cmd {
	return func() tea.Msg {
		var c protocol.Collector
		m.host.Handle(m.ctx, in, &c)
		return hostMsg{in: in, out: c.Drain()}
	}
}

// receive folds one host message into the session and the panes.
func (m *model) receive(o protocol.Outbound) tea.Cmd {
	var err error
	if o.Error != "" {
		err = errors.New(o.Error)
	}

	switch p := o.Payload.(type) {
	case protocol.PlanPayload:
		if m.session.ResolvePlan(session.RequestID(o.RequestID), ai.PlanResult{Plan: p.Plan, Err: err}) {
			m.diff = ""
			m.refresh()
			m.plan.Select(0)
		}
	case protocol.CodePayload:
		if m.session.ResolveCode(session.RequestID(o.RequestID), p.Step, ai.CodeResult{Code: p.Code, Err: err}) {
			m.refresh()
		}
	case protocol.NoticePayload:
		m.notify(ui.Notice{Level: string(p.Level), Message: p.Message})
	case protocol.AppliedPayload:
		m.diff = p.Diff
		if p.HookOutput != "" {
			m.notify(ui.Notice{Level: string(protocol.LevelInfo), Message: p.HookOutput})
		}
		m.refresh()
		return m.structureCmd()
	}
	return nil
}

func (m *model) notify(n ui.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// refresh rebuilds the plan items and the code pane from the session.
func (m *model) refresh() {
	active := m.session.ActiveFile()
	steps := m.session.Plan()
	items := make([]list.Item, 0, len(steps))
	for _, s := range steps {
		_, generated := m.session.CodeFor(s.File)
		items = append(items, ui.StepItem{
			Step:      s,
			Active:    s.File == active,
			Generated: generated,
			Failed:    m.session.Failure(s.File) != "",
		})
	}
	m.plan.SetItems(items)

	switch code, ok := m.session.CodeFor(active); {
	case m.diff != "":
		m.viewport.SetContent(ui.ColorDiff(m.diff, m.style))
	case ok:
		m.viewport.SetContent(code)
	case m.session.Fallback(active) != "":
		m.viewport.SetContent(m.session.Fallback(active))
	default:
		m.viewport.SetContent("")
	}
	m.viewport.GotoTop()
}

func (m *model) structureCmd() tea.Cmd {
	ws := m.host.Workspace()
	return func() tea.Msg {
		listing, err := ws.Structure()
		if err != nil {
			return structureMsg{err: err}
		}
		entries := 0
		if listing != workspace.NoWorkspace {
			entries = strings.Count(listing, "\n")
		}
		return structureMsg{entries: entries, tokens: prompt.EstimateTokens(listing)}
	}
}

// watchCmd runs the workspace watcher for the life of the program. Events are dropped
// while the panel is still handling earlier ones.
func (m *model) watchCmd() tea.Cmd {
	ws := m.host.Workspace()
	return func() tea.Msg {
		err := ws.Watch(m.ctx, func(rel string) {
			select {
			case m.changes <- rel:
			default:
			}
		})
		if err != nil && !errors.Is(err, workspace.ErrWatchUnsupported) && !errors.Is(err, workspace.ErrNoWorkspace) {
			m.log.Warn("workspace watch stopped", "error", err)
		}
		return nil
	}
}

func (m *model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-m.changes:
			return workspaceChangedMsg{path: p}
		case <-m.ctx.Done():
			return nil
		}
	}
}
