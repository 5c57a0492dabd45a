package tui

import "fmt"

// UI Text Constants
const (
	TextTitle       = "comicbot console"
	TextInstruction = "Type a command such as /search cat and press Enter"
	TextFooter      = "Enter to send | Esc or Ctrl+C to quit"
	TextRunning     = "running %d command(s)..."
)

// photoPlaceholder stands in for an image the terminal cannot show
func photoPlaceholder(contentType string, size int) string {
	return fmt.Sprintf("[photo %s, %s]", contentType, humanBytes(size))
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
