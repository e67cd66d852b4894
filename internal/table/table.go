package table

import (
	"strings"
	"unicode/utf8"

	"github.com/antoninobrosio/maxconverter/internal/models"
)

// padding is the fixed number of characters added to every column width so
// adjacent columns stay readable without a separator.
const padding = 3

// Render formats records into a fixed-width text table. Each column is as wide
// as its longest value or its header, plus padding, and every cell is
// left-justified so headers align with their values. Columns render in the
// exact order given by the caller; absent fields render as empty strings.
// Lines are joined with a single newline and no trailing newline is added.
func Render(records []models.Record, columns []string) string {
	// Widths are measured in runes so multibyte values keep columns aligned.
	widths := make(map[string]int, len(columns))
	for _, column := range columns {
		maxLen := utf8.RuneCountInString(column)
		for _, record := range records {
			if l := utf8.RuneCountInString(record.Get(column)); l > maxLen {
				maxLen = l
			}
		}
		widths[column] = maxLen + padding
	}

	lines := make([]string, 0, len(records)+1)

	var header strings.Builder
	for _, column := range columns {
		writePadded(&header, column, widths[column])
	}
	lines = append(lines, header.String())

	for _, record := range records {
		var line strings.Builder
		for _, column := range columns {
			writePadded(&line, record.Get(column), widths[column])
		}
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n")
}

func writePadded(b *strings.Builder, value string, width int) {
	b.WriteString(value)
	if pad := width - utf8.RuneCountInString(value); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
}
