package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"     _                       _           _   ",
	"    / \\   __ _ _ __ ___   | |__   ___ | |_ ",
	"   / _ \\ / _` | '__/ _ \\  | '_ \\ / _ \\| __|",
	"  / ___ \\ (_| | | | (_) | | |_) | (_) | |_ ",
	" /_/   \\_\\__, |_|  \\___/  |_.__/ \\___/ \\__|",
	"         |___/                              ",
}

// Greens, from young shoot to mature leaf.
var bannerColors = []string{"#bef264", "#a3e635", "#84cc16", "#65a30d", "#4d7c0f", "#3f6212"}

// PrintBanner writes the Agrobot banner followed by the version.
// Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	tagline := "  agricultural assistant 🌾"
	if v := strings.TrimSpace(version); v != "" {
		tagline += "  v" + v
	}
	fmt.Fprintln(w, out.String(tagline).Faint())
	fmt.Fprintln(w)
}
