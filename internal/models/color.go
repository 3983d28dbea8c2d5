package models

import (
	"fmt"
	"strings"

	gekoerrors "github.com/julianstephens/geko/internal/errors"
)

// Color is a habit's palette tag.
type Color string

const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorMint   Color = "mint"
	ColorTeal   Color = "teal"
	ColorCyan   Color = "cyan"
	ColorBlue   Color = "blue"
	ColorIndigo Color = "indigo"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorBrown  Color = "brown"
	ColorGray   Color = "gray"
)

// Palette lists every color in display order.
var Palette = []Color{
	ColorRed, ColorOrange, ColorYellow, ColorGreen, ColorMint, ColorTeal, ColorCyan,
	ColorBlue, ColorIndigo, ColorPurple, ColorPink, ColorBrown, ColorGray,
}

// Valid reports whether c is part of the palette.
func (c Color) Valid() bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// ParseColor parses a palette name case-insensitively.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", gekoerrors.ErrInvalidColor, s)
	}
	return c, nil
}

// ColorOrDefault is ParseColor for inbound sync data: unknown tags fall back to blue.
func ColorOrDefault(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		return ColorBlue
	}
	return c
}

// Hex returns the terminal color used when printing grids.
func (c Color) Hex() string {
	switch c {
	case ColorRed:
		return "#FF3B30"
	case ColorOrange:
		return "#FF9500"
	case ColorYellow:
		return "#FFCC00"
	case ColorGreen:
		return "#34C759"
	case ColorMint:
		return "#00C7BE"
	case ColorTeal:
		return "#30B0C7"
	case ColorCyan:
		return "#32ADE6"
	case ColorIndigo:
		return "#5856D6"
	case ColorPurple:
		return "#AF52DE"
	case ColorPink:
		return "#FF2D55"
	case ColorBrown:
		return "#A2845E"
	case ColorGray:
		return "#8E8E93"
	default:
		return "#007AFF"
	}
}
