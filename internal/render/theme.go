// Package render turns timeline entries into styled terminal lines.
package render

import "strings"

// BaseColors defines global UI colors.
type BaseColors struct {
	Background string
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// MessageColors distinguishes the local user's messages from others.
type MessageColors struct {
	Own   string
	Other string
	Reply string
	Image string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header     string
	Footer     string
	DateMarker string
	Reaction   string
	Error      string
}

// Theme is a named palette.
type Theme struct {
	Name          string
	AuthorPalette []string // ANSI-256 codes for author identity colors

	Base    BaseColors
	Message MessageColors
	Chrome  ChromeColors
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:          "default",
	AuthorPalette: append([]string(nil), AuthorColorPalette...),
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Message: MessageColors{
		Own:   "81",
		Other: "252",
		Reply: "109",
		Image: "147",
	},
	Chrome: ChromeColors{
		Header:     "111",
		Footer:     "110",
		DateMarker: "243",
		Reaction:   "220",
		Error:      "203",
	},
}

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name: "high-contrast",
	Base: BaseColors{
		Background: "16",
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "231",
	},
	Message: MessageColors{
		Own:   "87",
		Other: "231",
		Reply: "195",
		Image: "225",
	},
	Chrome: ChromeColors{
		Header:     "117",
		Footer:     "159",
		DateMarker: "252",
		Reaction:   "226",
		Error:      "196",
	},
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// ThemeByName returns the named theme, or DefaultTheme.
func ThemeByName(name string) Theme {
	if theme, ok := Themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return DefaultTheme
}
