package render

import (
	"fmt"
	"strings"

	"github.com/tOgg1/tribe/internal/chat"
)

// ReactionSheet lists every reaction on a message with its contributor.
func (r *Renderer) ReactionSheet(msg chat.Message, dir chat.Lookup) []string {
	resolved := chat.ResolveReactions(msg, dir)
	lines := []string{r.heading.Render("Reactions")}
	if len(resolved) == 0 {
		return append(lines, r.muted.Render("no reactions"))
	}
	for _, rr := range resolved {
		line := fmt.Sprintf("%s x%d", rr.Symbol, rr.Count)
		if rr.Participant != nil {
			line += "  " + r.colors.Style(rr.Participant.UUID).Render(rr.Participant.Name)
			if rr.Participant.AvatarURL != "" {
				line += " " + r.timestamp.Render(rr.Participant.AvatarURL)
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// ParticipantSheet shows a participant's profile.
func (r *Renderer) ParticipantSheet(p chat.Participant) []string {
	lines := []string{r.colors.Style(p.UUID).Render(p.DisplayName())}
	field := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		lines = append(lines, r.timestamp.Render(label+": ")+value)
	}
	field("Title", p.JobTitle)
	field("Email", p.Email)
	field("Avatar", p.AvatarURL)
	if bio := strings.TrimSpace(p.Bio); bio != "" {
		lines = append(lines, "")
		lines = append(lines, strings.Split(wrap(bio, r.opts.Width), "\n")...)
	}
	return lines
}

// ImageSheet lists the image references of a message, numbered.
func (r *Renderer) ImageSheet(msg chat.Message) []string {
	images := msg.Images()
	lines := []string{r.heading.Render("Images")}
	if len(images) == 0 {
		return append(lines, r.muted.Render("no images"))
	}
	for i, ref := range images {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, ref))
	}
	return lines
}
