package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "\n▸ %s\n\n", title)
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	_, _ = successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	_, _ = warningColor.Fprintf(w, "⚠ "+format+"\n", args...)
}

func printError(w io.Writer, format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(w, "✗ "+format+"\n", args...)
}

func printField(w io.Writer, label string, value interface{}) {
	_, _ = labelColor.Fprintf(w, "  %-16s", label+":")
	fmt.Fprintf(w, " %v\n", value)
}

func printDim(w io.Writer, format string, args ...interface{}) {
	_, _ = dimColor.Fprintf(w, "  "+format+"\n", args...)
}

// writeOutput stores data as out/name, creating out when needed.
func writeOutput(out, name string, data []byte) (string, error) {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(out, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
