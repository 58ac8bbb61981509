// Package ui prints coloured progress messages for the CLI.
// Messages go to stderr so stdout carries only the ledger.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const lineLength = 60

// Writer receives all UI output. Tests may swap it.
var Writer io.Writer = color.Error

var (
	bold    = color.New(color.Bold)
	cyan    = color.New(color.FgCyan)
	green   = color.New(color.FgGreen)
	yellow  = color.New(color.FgYellow)
	red     = color.New(color.FgRed, color.Bold)
	blue    = color.New(color.FgBlue)
	faintFg = color.New(color.Faint)
)

// Header prints a centred title between two rules.
func Header(title string) {
	rule := strings.Repeat("=", lineLength)
	fmt.Fprintln(Writer, rule)
	bold.Fprintln(Writer, center(title, lineLength))
	fmt.Fprintln(Writer, rule)
}

// Step prints "[n/total] message".
func Step(n, total int, message string) {
	cyan.Fprintf(Writer, "[%d/%d] ", n, total)
	fmt.Fprintln(Writer, message)
}

// Success prints a green check line.
func Success(message string) {
	green.Fprintf(Writer, "✓ %s\n", message)
}

// Info prints a neutral information line.
func Info(message string) {
	blue.Fprint(Writer, "ℹ ")
	fmt.Fprintln(Writer, message)
}

// Warning prints a yellow warning line.
func Warning(message string) {
	yellow.Fprintf(Writer, "⚠ %s\n", message)
}

// Error prints a red error line.
func Error(message string) {
	red.Fprintf(Writer, "✗ %s\n", message)
}

// Detail prints an indented, dimmed line.
func Detail(message string) {
	faintFg.Fprintf(Writer, "    %s\n", message)
}

// BlueText returns s coloured blue.
func BlueText(s string) string {
	return blue.Sprint(s)
}

// YellowText returns s coloured yellow.
func YellowText(s string) string {
	return yellow.Sprint(s)
}

// center left-pads text so it sits in the middle of width columns.
// Text at least as wide as width is returned unchanged.
func center(text string, width int) string {
	n := len([]rune(text))
	if n >= width {
		return text
	}
	return strings.Repeat(" ", (width-n)/2) + text
}
