package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) startCmd() tea.Cmd {
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		return startedMsg{err: session.Start(ctx)}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m *Model) pollCmd() tea.Cmd {
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		added, err := session.Poll(ctx)
		return pollResultMsg{added: added, err: err}
	}
}

func (m *Model) loadOlderCmd() tea.Cmd {
	if m.loadingOlder || !m.session.Store().HasMore() {
		return nil
	}
	m.loadingOlder = true
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		added, err := session.LoadOlder(ctx)
		return olderResultMsg{added: added, err: err}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	if m.refreshing {
		return nil
	}
	m.refreshing = true
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		return refreshResultMsg{err: session.Refresh(ctx)}
	}
}

func (m *Model) sendCmd() tea.Cmd {
	text := strings.TrimSpace(m.composer)
	if text == "" || m.sending {
		return nil
	}
	m.sending = true
	ctx := m.ctx
	session := m.session
	return func() tea.Msg {
		msg, err := session.Send(ctx, text)
		return sendResultMsg{msg: msg, err: err}
	}
}
