package src

import (
	"github.com/Protocol-Lattice/specgen/src/ui"
)

func (m *model) View() string {
	return ui.Render(m.state(), m.style)
}

func (m *model) state() ui.State {
	active := m.session.ActiveFile()
	_, hasCode := m.session.CodeFor(active)
	return ui.State{
		Focus:      m.focus,
		Workspace:  workspaceLabel(m.host.Workspace().Root()),
		SessionID:  m.sessionID,
		Model:      m.modelName,
		Entries:    m.entries,
		Tokens:     m.tokens,
		Loading:    m.session.Loading(),
		LoadingFor: m.loadingOp,
		ActiveFile: active,
		HasCode:    hasCode,
		Failure:    m.session.Failure(active),
		Notices:    m.notices,
		Plan:       m.plan,
		TextArea:   m.textarea,
		Viewport:   m.viewport,
		Spinner:    m.spinner,
	}
}

func (m *model) viewHeader() string {
	return ui.RenderHeader(m.style)
}

func (m *model) viewFooter() string {
	return ui.RenderFooter(m.state(), m.style)
}

func workspaceLabel(root string) string {
	if root == "" {
		return "(none)"
	}
	return root
}
