// Package tui is the interactive chat client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/chatsync"
	"github.com/tOgg1/tribe/internal/logging"
	"github.com/tOgg1/tribe/internal/render"
	"github.com/tOgg1/tribe/internal/timeline"
)

const (
	defaultPollInterval = chatsync.DefaultPollInterval
	loadingMoreText     = "Loading more..."
)

type sheetKind int

const (
	sheetNone sheetKind = iota
	sheetReactions
	sheetParticipant
	sheetImages
)

// Config configures the TUI.
type Config struct {
	Session        *chatsync.Session
	Theme          string
	SelfID         string
	ShowTimestamps bool
	PollInterval   time.Duration
	Location       *time.Location
	Now            func() time.Time
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	session      *chatsync.Session
	renderer     *render.Renderer
	pollInterval time.Duration
	location     *time.Location
	now          func() time.Time
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	entries  []timeline.Entry
	messages []chat.Message
	selected int // index into messages, newest first
	scroll   int // lines scrolled up from the bottom

	composer string
	sheet    sheetKind

	started      bool
	loadingOlder bool
	refreshing   bool
	sending      bool
	lastErr      error
	pollErr      error
}

type startedMsg struct{ err error }

type pollTickMsg struct{}

type pollResultMsg struct {
	added int
	err   error
}

type olderResultMsg struct {
	added int
	err   error
}

type refreshResultMsg struct{ err error }

type sendResultMsg struct {
	msg chat.Message
	err error
}

// NewModel builds a Model around a session.
func NewModel(cfg Config) (*Model, error) {
	if cfg.Session == nil {
		return nil, errors.New("session is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		session: cfg.Session,
		renderer: render.New(render.ThemeByName(cfg.Theme), render.Options{
			SelfID:         cfg.SelfID,
			ShowTimestamps: cfg.ShowTimestamps,
			Location:       cfg.Location,
		}),
		pollInterval: cfg.PollInterval,
		location:     cfg.Location,
		now:          cfg.Now,
		logger:       logging.Component("tui"),
		ctx:          ctx,
		cancel:       cancel,
	}
	m.rebuild()
	return m, nil
}

// Run starts the TUI and blocks until it exits.
func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// Close cancels in-flight requests.
func (m *Model) Close() {
	if m != nil && m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) Init() tea.Cmd {
	return m.startCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.renderer.SetWidth(typed.Width)
		return m, nil
	case startedMsg:
		m.started = true
		m.setErr(typed.err)
		m.rebuild()
		return m, m.tickCmd()
	case pollTickMsg:
		return m, m.pollCmd()
	case pollResultMsg:
		m.pollErr = typed.err
		if typed.err != nil && !errors.Is(typed.err, context.Canceled) {
			m.logger.Warn().Err(typed.err).Msg("poll failed")
		}
		m.rebuild()
		return m, m.tickCmd()
	case olderResultMsg:
		m.loadingOlder = false
		m.setErr(typed.err)
		m.rebuild()
		return m, nil
	case refreshResultMsg:
		m.refreshing = false
		m.setErr(typed.err)
		m.scroll = 0
		m.selected = 0
		m.rebuild()
		return m, nil
	case sendResultMsg:
		m.sending = false
		if typed.err != nil {
			m.setErr(typed.err)
			return m, nil
		}
		m.composer = ""
		m.lastErr = nil
		m.scroll = 0
		m.selected = 0
		m.rebuild()
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(typed)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc":
		if m.sheet != sheetNone {
			m.sheet = sheetNone
			return nil
		}
		m.composer = ""
		return nil
	}

	if m.sheet != sheetNone {
		return nil
	}

	switch msg.String() {
	case "enter":
		return m.sendCmd()
	case "ctrl+u":
		return m.loadOlderCmd()
	case "pgup":
		if m.atTop() {
			return m.loadOlderCmd()
		}
		m.scroll += m.pageStep()
		return nil
	case "pgdown":
		m.scroll -= m.pageStep()
		if m.scroll < 0 {
			m.scroll = 0
		}
		return nil
	case "ctrl+r":
		return m.refreshCmd()
	case "up":
		if m.selected < len(m.messages)-1 {
			m.selected++
		}
		return nil
	case "down":
		if m.selected > 0 {
			m.selected--
		}
		return nil
	case "tab":
		if _, ok := m.selectedMessage(); ok {
			m.sheet = sheetReactions
		}
		return nil
	case "ctrl+p":
		if _, ok := m.selectedMessage(); ok {
			m.sheet = sheetParticipant
		}
		return nil
	case "ctrl+o":
		if msg, ok := m.selectedMessage(); ok && len(msg.Images()) > 0 {
			m.sheet = sheetImages
		}
		return nil
	case "backspace":
		if r := []rune(m.composer); len(r) > 0 {
			m.composer = string(r[:len(r)-1])
		}
		return nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.composer += string(msg.Runes)
	case tea.KeySpace:
		m.composer += " "
	}
	return nil
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	composer := m.renderComposer()

	bodyHeight := m.bodyHeight(header, footer, composer)
	var body string
	switch m.sheet {
	case sheetReactions:
		msg, _ := m.selectedMessage()
		body = strings.Join(m.renderer.ReactionSheet(msg, m.session.Directory()), "\n")
	case sheetParticipant:
		msg, _ := m.selectedMessage()
		p, ok := m.session.Directory().Lookup(msg.AuthorUUID)
		if !ok {
			p = chat.Participant{UUID: msg.AuthorUUID}
		}
		body = strings.Join(m.renderer.ParticipantSheet(p), "\n")
	case sheetImages:
		msg, _ := m.selectedMessage()
		body = strings.Join(m.renderer.ImageSheet(msg), "\n")
	default:
		body = strings.Join(visibleLines(m.timelineLines(), bodyHeight, m.scroll), "\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, composer)
}

func (m *Model) renderHeader() string {
	title := fmt.Sprintf("tribe · %d messages · %d participants", len(m.messages), m.session.Directory().Len())
	if !m.started {
		title += " · connecting"
	}
	return m.renderer.Muted(title)
}

func (m *Model) renderFooter() string {
	var parts []string
	if m.loadingOlder {
		parts = append(parts, loadingMoreText)
	} else if !m.session.Store().HasMore() && len(m.messages) > 0 {
		parts = append(parts, "start of conversation")
	}
	if m.refreshing {
		parts = append(parts, "refreshing...")
	}
	if m.sending {
		parts = append(parts, "sending...")
	}
	if msg, ok := m.selectedMessage(); ok && m.selected > 0 {
		parts = append(parts, fmt.Sprintf("selected: %s: %s",
			chat.DisplayName(m.session.Directory(), msg.AuthorUUID), snippet(msg.Text, 30)))
	}
	lines := []string{m.renderer.Muted(strings.Join(parts, " · "))}
	for _, err := range []error{m.lastErr, m.pollErr} {
		if err != nil {
			lines = append(lines, m.renderer.Error(err))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderComposer() string {
	if m.sheet != sheetNone {
		return m.renderer.Muted("esc to close")
	}
	return "> " + m.composer
}

func (m *Model) timelineLines() []string {
	lookup := func(id string) (chat.Message, bool) {
		return m.session.Store().Get(id)
	}
	return m.renderer.Timeline(m.entries, lookup, m.session.Directory())
}

func (m *Model) rebuild() {
	m.messages = m.session.Store().Messages()
	m.entries = timeline.Build(m.messages, m.session.Directory(), timeline.Options{
		Now:      m.now(),
		Location: m.location,
	})
	if m.selected >= len(m.messages) {
		m.selected = max(len(m.messages)-1, 0)
	}
}

func (m *Model) selectedMessage() (chat.Message, bool) {
	if m.selected < 0 || m.selected >= len(m.messages) {
		return chat.Message{}, false
	}
	return m.messages[m.selected], true
}

func (m *Model) bodyHeight(chrome ...string) int {
	h := m.height
	for _, part := range chrome {
		h -= lipgloss.Height(part)
	}
	return h
}

func (m *Model) atTop() bool {
	height := m.bodyHeight(m.renderHeader(), m.renderFooter(), m.renderComposer())
	return height <= 0 || m.scroll+height >= len(m.timelineLines())
}

func (m *Model) pageStep() int {
	return max(m.height/2, 1)
}

func (m *Model) setErr(err error) {
	if err != nil {
		m.lastErr = err
	}
}

func visibleLines(lines []string, height, scroll int) []string {
	if height <= 0 {
		return lines
	}
	end := len(lines) - scroll
	if end < 0 {
		end = 0
	}
	start := max(end-height, 0)
	return lines[start:end]
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "…"
}
