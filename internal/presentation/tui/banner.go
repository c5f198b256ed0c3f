package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Turnstile banner and the thread being resumed.
func PrintBanner(w io.Writer, threadID string, turns int) {
	p := termenv.ColorProfile()
	// Indigo to rose, one shade per line
	lines := []struct {
		text  string
		color string
	}{
		{" _                        _   _ _      ", "#818cf8"},
		{"| |_ _   _ _ __ _ __  ___| |_(_) | ___ ", "#a78bfa"},
		{"| __| | | | '__| '_ \\/ __| __| | |/ _ \\", "#c084fc"},
		{"| |_| |_| | |  | | | \\__ \\ |_| | |  __/", "#e879f9"},
		{" \\__|\\__,_|_|  |_| |_|___/\\__|_|_|\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)

	status := "new thread"
	if turns > 0 {
		status = fmt.Sprintf("resuming, %d turns", turns)
	}
	fmt.Fprintln(w, termenv.String(fmt.Sprintf("thread %s (%s), type exit to quit", threadID, status)).Faint())
	fmt.Fprintln(w)
}
