package rlog

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Box drawing characters, grounded on the teacher's console box renderer.
const (
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxHorizontal  = "─"
	boxVertical    = "│"
)

// terminalWidth returns the current terminal width, capped between 60 and
// 100 columns, falling back to 80 when it cannot be detected (not a TTY, or
// piped output).
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 60 {
		return 60
	}
	if width > 100 {
		return 100
	}
	return width
}

// RenderOverbakeBox formats the operator pause prompt for a story that has
// failed consecutively for threshold-or-more iterations, as a bordered box
// sized to the terminal. Wide runes (e.g. non-ASCII story titles) are
// measured with runewidth so the border still lines up.
func RenderOverbakeBox(storyID, title string, consecutiveFailures, threshold int) string {
	width := terminalWidth()
	lines := []string{
		fmt.Sprintf("story %s has failed %d consecutive iterations", storyID, consecutiveFailures),
		title,
		fmt.Sprintf("threshold: %d   [c]ontinue  [s]kip  [a]bort", threshold),
	}

	var b strings.Builder
	b.WriteString(boxTopLeft + strings.Repeat(boxHorizontal, width-2) + boxTopRight + "\n")
	for _, line := range lines {
		b.WriteString(boxLine(line, width) + "\n")
	}
	b.WriteString(boxBottomLeft + strings.Repeat(boxHorizontal, width-2) + boxBottomRight)
	return b.String()
}

func boxLine(content string, width int) string {
	visible := runewidth.StringWidth(content)
	padding := width - 4 - visible
	if padding < 0 {
		content = runewidth.Truncate(content, width-7, "...")
		padding = width - 4 - runewidth.StringWidth(content)
		if padding < 0 {
			padding = 0
		}
	}
	return boxVertical + " " + content + strings.Repeat(" ", padding) + " " + boxVertical
}
