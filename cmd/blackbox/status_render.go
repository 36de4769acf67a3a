package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"blackbox/internal/daemonctl"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusKinds = [...]struct {
	severity string
	label    string
	color    string
}{
	statusInfo:  {"info", "INFO", ansiBlue},
	statusOK:    {"ok", "OK", ansiGreen},
	statusWarn:  {"warn", "WARN", ansiYellow},
	statusError: {"error", "ERROR", ansiRed},
}

// statusKindFromSeverity maps the daemonctl severity strings onto kinds.
// Anything unrecognised renders as info.
func statusKindFromSeverity(severity string) statusKind {
	severity = strings.ToLower(strings.TrimSpace(severity))
	if severity == "warning" {
		severity = "warn"
	}
	for kind, style := range statusKinds {
		if style.severity == severity {
			return statusKind(kind)
		}
	}
	return statusInfo
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

// renderStatusLine formats "  Label:    [KIND] message", coloured by kind.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusKinds[kind]
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	return paint(line, style.color, colorize)
}

func renderStatusLines(w io.Writer, lines []daemonctl.StatusLine, colorize bool) {
	for _, line := range lines {
		fmt.Fprintln(w, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
}

func renderSection(w io.Writer, title string, colorize bool) {
	heading := "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(w, paint(heading, ansiBlue, colorize))
	fmt.Fprintln(w, paint(strings.Repeat("-", len(heading)), ansiBlue, colorize))
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
