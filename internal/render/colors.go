package render

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// AuthorColorPalette is an ANSI 256 palette for stable author colors.
var AuthorColorPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// AuthorColors resolves deterministic per-author styles and caches them.
type AuthorColors struct {
	palette []string

	mu    sync.RWMutex
	cache map[string]lipgloss.Style
}

// NewAuthorColors returns a mapper over palette, or the default palette.
func NewAuthorColors(palette []string) *AuthorColors {
	if len(palette) == 0 {
		palette = AuthorColorPalette
	}
	return &AuthorColors{
		palette: append([]string(nil), palette...),
		cache:   make(map[string]lipgloss.Style, 32),
	}
}

// Style returns the bold foreground style for an author id.
func (c *AuthorColors) Style(authorID string) lipgloss.Style {
	key := strings.ToLower(strings.TrimSpace(authorID))

	c.mu.RLock()
	style, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return style
	}

	style = lipgloss.NewStyle().Foreground(lipgloss.Color(c.ColorCode(key))).Bold(true)
	c.mu.Lock()
	c.cache[key] = style
	c.mu.Unlock()
	return style
}

// ColorCode returns the palette entry selected for an author id.
func (c *AuthorColors) ColorCode(authorID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(authorID))))
	return c.palette[int(h.Sum32()%uint32(len(c.palette)))]
}
