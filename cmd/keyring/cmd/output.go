package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// Output streams, swapped in tests.
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin

	// Color definitions.
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Success prints a success message in green.
func Success(format string, a ...any) {
	successColor.Fprintf(stdout, "✓ "+format+"\n", a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	warningColor.Fprintf(stdout, "⚠ "+format+"\n", a...)
}

// Info prints an info message in cyan.
func Info(format string, a ...any) {
	infoColor.Fprintf(stdout, "ℹ "+format+"\n", a...)
}

// Bold prints text in bold.
func Bold(format string, a ...any) string {
	return boldColor.Sprintf(format, a...)
}

// Dim prints text in dim/faint style.
func Dim(format string, a ...any) string {
	return dimColor.Sprintf(format, a...)
}

// PromptConfirm asks for user confirmation and returns true if confirmed.
func PromptConfirm(message string) bool {
	fmt.Fprintf(stdout, "%s [y/N]: ", message)

	response, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	switch strings.TrimSpace(strings.ToLower(response)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// PrintKeyValue prints a key-value pair with the key highlighted.
func PrintKeyValue(key, value string) {
	fmt.Fprintf(stdout, "%s: %s\n", boldColor.Sprint(key), value)
}

// PrintTableHeader prints a table header with bold column names.
func PrintTableHeader(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(stdout, "\t")
		}
		fmt.Fprint(stdout, boldColor.Sprint(col))
	}
	fmt.Fprintln(stdout)
}

// printJSON writes v as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
