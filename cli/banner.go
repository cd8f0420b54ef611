package cli

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/caarlos0/env/v11"
)

const (
	boxTopLeft     = "╒"
	boxTopRight    = "╕"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	ellipsis       = "…"

	// DefaultWidth is the banner width used when none is given.
	DefaultWidth = 60

	bannerPadding = 2
)

type bannerConfig struct {
	NoBanner bool `env:"FSM_NO_BANNER" envDefault:"false"`
}

var suppressBanner = sync.OnceValue(func() bool { //nolint:gochecknoglobals
	var cfg bannerConfig
	if err := env.Parse(&cfg); err != nil {
		return false
	}

	return cfg.NoBanner
})

// Banner draws a box around s, one centered row per line. With FSM_NO_BANNER
// set it returns s unchanged.
func Banner(s string, width int) string {
	if suppressBanner() {
		return s + "\n"
	}

	if width <= bannerPadding {
		width = DefaultWidth
	}

	inner := width - bannerPadding
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var sb strings.Builder

	fmt.Fprintf(&sb, "%s%s%s\n", boxTopLeft, strings.Repeat(boxTop, inner), boxTopRight)

	for _, line := range lines {
		fmt.Fprintf(&sb, "%s%s%s\n", boxSide, center(line, inner), boxSide)
	}

	fmt.Fprintf(&sb, "%s%s%s\n", boxBottomLeft, strings.Repeat(boxBottom, inner), boxBottomRight)

	return sb.String()
}

func center(text string, width int) string {
	length := graphicLen(text)

	if length > width {
		text = truncate(text, width-1) + ellipsis
		length = width
	}

	left := (width - length) / 2 //nolint:mnd

	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-length-left)
}

func graphicLen(s string) int {
	n := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			n++
		}
	}

	return n
}

// truncate keeps the first n graphic runes of s.
func truncate(s string, n int) string {
	var sb strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			if count == n {
				break
			}

			count++
		}

		sb.WriteRune(r)
	}

	return sb.String()
}
