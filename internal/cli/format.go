package cli

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// fatih/color disables these when stdout is not a terminal or NO_COLOR is set.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// maxCellWidth caps free-text table cells such as pack descriptions.
// Paths are never cut.
const maxCellWidth = 60

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
	fmt.Println()
}

func PrintSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

// PrintError prints to stderr so --json output on stdout stays parseable.
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

func PrintInfo(msg string) {
	fmt.Println(msg)
}

func PrintLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	_, _ = valueColor.Println(value)
}

// PrintList prints paths or names as an indented bullet list.
func PrintList(items []string, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Printf("%s• %s\n", prefix, item)
	}
}

// PrintTable prints rows under headers. Columns are padded by rune count so
// non-ASCII project names line up; the last column is not padded. A cell in
// a column listed in truncate is cut to maxCellWidth runes.
func PrintTable(headers []string, rows [][]string, truncate ...int) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	cut := make(map[int]bool, len(truncate))
	for _, col := range truncate {
		cut[col] = true
	}

	cells := make([][]string, len(rows))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for r, row := range rows {
		cells[r] = make([]string, len(headers))
		for i := range headers {
			if i >= len(row) {
				continue
			}
			cell := row[i]
			if cut[i] {
				cell = truncateCell(cell, maxCellWidth)
			}
			cells[r][i] = cell
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	last := len(headers) - 1
	printRow := func(row []string, c *color.Color) {
		fmt.Print("  ")
		for i, cell := range row {
			if i > 0 {
				fmt.Print("  ")
			}
			if i < last {
				cell += strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			}
			_, _ = c.Print(cell)
		}
		fmt.Println()
	}

	printRow(headers, headerColor)
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}
	printRow(rules, dimColor)
	for _, row := range cells {
		printRow(row, valueColor)
	}
}

func truncateCell(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func PrintEmptyState(msg string) {
	_, _ = dimColor.Printf("  %s\n", msg)
}

// countOf formats n with noun, pluralized by a trailing s.
func countOf(n int, noun string) string {
	return fmt.Sprintf("%d %s%s", n, noun, plural(n))
}

func plural(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
