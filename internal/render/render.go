package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/timeline"
)

const (
	replyPrefix   = "↳ "
	bodyIndent    = "  "
	snippetLength = 40
)

// MessageLookup finds a message by id, for reply previews.
type MessageLookup func(id string) (chat.Message, bool)

// Options controls layout.
type Options struct {
	Width          int
	SelfID         string
	ShowTimestamps bool
	Location       *time.Location
}

// Renderer holds pre-built styles for one theme.
type Renderer struct {
	theme  Theme
	opts   Options
	colors *AuthorColors

	dateMarker lipgloss.Style
	timestamp  lipgloss.Style
	body       lipgloss.Style
	own        lipgloss.Style
	muted      lipgloss.Style
	reply      lipgloss.Style
	image      lipgloss.Style
	reaction   lipgloss.Style
	heading    lipgloss.Style
	errorText  lipgloss.Style
}

func New(theme Theme, opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Renderer{
		theme:      theme,
		opts:       opts,
		colors:     NewAuthorColors(theme.AuthorPalette),
		dateMarker: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.DateMarker)),
		timestamp:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)),
		body:       lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Other)),
		own:        lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Own)),
		muted:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)).Italic(true),
		reply:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Reply)),
		image:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Image)).Underline(true),
		reaction:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.Reaction)),
		heading:    lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.Header)).Bold(true),
		errorText:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Chrome.Error)).Bold(true),
	}
}

// SetWidth changes the wrap width.
func (r *Renderer) SetWidth(width int) {
	r.opts.Width = width
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.opts.Width
}

// Timeline renders newest-first entries top to bottom in reading order:
// oldest at the top, so the newest message sits just above the composer.
func (r *Renderer) Timeline(entries []timeline.Entry, lookup MessageLookup, dir chat.Lookup) []string {
	lines := make([]string, 0, len(entries)*3)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Kind {
		case timeline.EntryDate:
			lines = append(lines, "", r.DateMarker(e.Label), "")
		case timeline.EntryRun:
			lines = append(lines, r.Run(e, lookup, dir)...)
		}
	}
	return lines
}

// DateMarker renders a centered day separator.
func (r *Renderer) DateMarker(label string) string {
	text := "── " + label + " ──"
	if r.opts.Width > 0 {
		text = lipgloss.PlaceHorizontal(r.opts.Width, lipgloss.Center, text)
	}
	return r.dateMarker.Render(text)
}

// Run renders a header followed by the run's messages, oldest first.
func (r *Renderer) Run(e timeline.Entry, lookup MessageLookup, dir chat.Lookup) []string {
	lines := []string{r.RunHeader(e)}
	for i := len(e.Messages) - 1; i >= 0; i-- {
		lines = append(lines, r.Message(e.Messages[i], lookup, dir)...)
	}
	return lines
}

// RunHeader renders the author name and the time of the run's first message.
func (r *Renderer) RunHeader(e timeline.Entry) string {
	name := e.DisplayName()
	if name == "" {
		name = "unknown"
	}
	header := r.colors.Style(e.AuthorID).Render(name)
	if r.opts.SelfID != "" && e.AuthorID == r.opts.SelfID {
		header += r.muted.Render(" (you)")
	}
	if r.opts.ShowTimestamps && len(e.Messages) > 0 {
		first := e.Messages[len(e.Messages)-1]
		header += " " + r.timestamp.Render(first.SentAt.In(r.opts.Location).Format("15:04"))
	}
	return header
}

// Message renders one message: reply preview, wrapped body, images, and
// the reaction row.
func (r *Renderer) Message(msg chat.Message, lookup MessageLookup, dir chat.Lookup) []string {
	var lines []string
	if msg.ReplyToMessage != "" {
		lines = append(lines, bodyIndent+r.reply.Render(r.replyPreview(msg.ReplyToMessage, lookup, dir)))
	}

	style := r.body
	if r.opts.SelfID != "" && msg.AuthorUUID == r.opts.SelfID {
		style = r.own
	}
	body := wrap(msg.Text, r.opts.Width-len(bodyIndent))
	bodyLines := strings.Split(body, "\n")
	for i, line := range bodyLines {
		rendered := bodyIndent + style.Render(line)
		if i == len(bodyLines)-1 && msg.Edited() {
			rendered += " " + r.muted.Render("(edited)")
		}
		lines = append(lines, rendered)
	}

	for _, ref := range msg.Images() {
		lines = append(lines, bodyIndent+r.image.Render("[image] "+ref))
	}

	if row := r.ReactionRow(chat.ResolveReactions(msg, dir)); row != "" {
		lines = append(lines, bodyIndent+row)
	}
	return lines
}

func (r *Renderer) replyPreview(targetID string, lookup MessageLookup, dir chat.Lookup) string {
	if lookup != nil {
		if target, ok := lookup(targetID); ok {
			snippet := strings.Join(strings.Fields(target.Text), " ")
			snippet = truncate.StringWithTail(snippet, snippetLength, "…")
			return fmt.Sprintf("%sreplying to %s: %s", replyPrefix, chat.DisplayName(dir, target.AuthorUUID), snippet)
		}
	}
	return replyPrefix + "replying to " + targetID
}

// ReactionRow renders "👍 3  🎉 1".
func (r *Renderer) ReactionRow(resolved []chat.ResolvedReaction) string {
	summary := chat.Summarize(resolved)
	if len(summary) == 0 {
		return ""
	}
	parts := make([]string, 0, len(summary))
	for _, s := range summary {
		parts = append(parts, fmt.Sprintf("%s %d", s.Symbol, s.Count))
	}
	return r.reaction.Render(strings.Join(parts, "  "))
}

// Error renders an error line.
func (r *Renderer) Error(err error) string {
	return r.errorText.Render("error: " + err.Error())
}

// Muted renders secondary text such as status footers.
func (r *Renderer) Muted(text string) string {
	return r.muted.Render(text)
}

func wrap(body string, width int) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if width <= 0 {
		return body
	}
	parts := strings.Split(body, "\n")
	for i := range parts {
		parts[i] = wordwrap.String(parts[i], width)
	}
	return strings.Join(parts, "\n")
}
