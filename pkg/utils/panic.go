package utils

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	Version = "v1.0.0"
	RepoURL = "https://github.com/lsilvatti/parallelbook"
)

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FF0000")).
	Bold(true)

// RecoverPanic is a global panic handler for the batch driver: it
// prints a crash report to stderr and exits non-zero. Unlike an
// interactive TUI, a synchronous CLI must never block on stdin here —
// the process may be running unattended or piped.
func RecoverPanic() {
	if r := recover(); r != nil {
		fmt.Fprintln(os.Stderr, renderCrashReport(r))
		os.Exit(1)
	}
}

func renderCrashReport(panicValue interface{}) string {
	width := 80

	var b strings.Builder
	b.WriteString(errorStyle.Render("parallelbook: unrecoverable error"))
	b.WriteString("\n\n")

	panicMsg := fmt.Sprintf("%v", panicValue)
	b.WriteString("Error details:\n")
	b.WriteString(wrapText(panicMsg, width-2, "  "))
	b.WriteString("\n\n")

	stack := string(debug.Stack())
	b.WriteString("Stack trace:\n")
	stackLines := strings.Split(stack, "\n")

	displayLines := 10
	if len(stackLines) < displayLines {
		displayLines = len(stackLines)
	}
	for i := 0; i < displayLines; i++ {
		if len(stackLines[i]) > width-2 {
			b.WriteString("  " + stackLines[i][:width-5] + "...")
		} else {
			b.WriteString("  " + stackLines[i])
		}
		b.WriteString("\n")
	}
	if len(stackLines) > displayLines {
		b.WriteString(fmt.Sprintf("  ... and %d more lines\n", len(stackLines)-displayLines))
	}

	b.WriteString("\nProgress up to this point is safely recorded in the state database; rerun the same command to resume.\n")
	b.WriteString(fmt.Sprintf("Please report this issue: %s/issues/new\n", RepoURL))

	return b.String()
}

func wrapText(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	var currentLine string

	for _, word := range words {
		if len(currentLine)+len(word)+1 > width {
			lines = append(lines, indent+currentLine)
			currentLine = word
		} else {
			if currentLine != "" {
				currentLine += " "
			}
			currentLine += word
		}
	}

	if currentLine != "" {
		lines = append(lines, indent+currentLine)
	}

	return strings.Join(lines, "\n")
}

// SafeRun wraps a function with panic recovery
func SafeRun(fn func()) {
	defer RecoverPanic()
	fn()
}
