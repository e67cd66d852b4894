package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFileName builds the conventional output name for an extraction:
// {BASE}_{YYYYMMDD}[_{AAVSO|MPC}].txt, where BASE is the input file's stem
// uppercased with spaces replaced by underscores. When both observer codes
// are supplied the AAVSO suffix wins.
func DefaultFileName(inputPath string, now time.Time, aavsoCode, mpcCode string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	base := strings.ReplaceAll(strings.ToUpper(stem), " ", "_")
	dateStr := now.Format("20060102")

	suffix := ""
	if strings.TrimSpace(aavsoCode) != "" {
		suffix = "AAVSO"
	} else if strings.TrimSpace(mpcCode) != "" {
		suffix = "MPC"
	}

	if suffix != "" {
		return fmt.Sprintf("%s_%s_%s.txt", base, dateStr, suffix)
	}
	return fmt.Sprintf("%s_%s.txt", base, dateStr)
}

// WriteTable writes a rendered table to path.
func WriteTable(path string, table string) error {
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}
