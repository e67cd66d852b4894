package parser

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/antoninobrosio/maxconverter/internal/models"
	"github.com/antoninobrosio/maxconverter/pkg/checksum"
)

// floatToken matches generic floating-point tokens, scientific notation included.
var floatToken = regexp.MustCompile(`[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// maxLineSize caps a single log line. Exported logs can carry very long
// comment lines, so the default bufio.Scanner limit is not enough.
const maxLineSize = 10 * 1024 * 1024

// ParseLine extracts a photometric record from a single log line.
//
// Three input shapes are supported, first match wins:
//   - comma-separated with at least 5 fields (NAME, HJD, MAG, MAG_ERR, FILTER)
//   - whitespace-separated with at least 5 tokens, same positional mapping
//   - fallback: the first three numeric tokens become HJD, MAG and MAG_ERR
//
// Blank lines, lines starting with '#' and lines matching none of the shapes
// return nil. Field values are stored verbatim, never reformatted.
func ParseLine(line string) models.Record {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return nil
	}

	if parts := strings.Split(s, ","); len(parts) >= 5 {
		return positionalRecord(parts)
	}

	if parts := strings.Fields(s); len(parts) >= 5 {
		return positionalRecord(parts)
	}

	if nums := floatToken.FindAllString(s, -1); len(nums) >= 3 {
		return models.Record{
			models.ColumnName:   "",
			models.ColumnHJD:    nums[0],
			models.ColumnMag:    nums[1],
			models.ColumnMagErr: nums[2],
			models.ColumnFilter: "",
		}
	}

	return nil
}

func positionalRecord(parts []string) models.Record {
	return models.Record{
		models.ColumnName:   strings.TrimSpace(parts[0]),
		models.ColumnHJD:    strings.TrimSpace(parts[1]),
		models.ColumnMag:    strings.TrimSpace(parts[2]),
		models.ColumnMagErr: strings.TrimSpace(parts[3]),
		models.ColumnFilter: strings.TrimSpace(parts[4]),
	}
}

// ParseFile reads a photometric log and returns one record per parseable line,
// in input order. Lines that carry no data are skipped silently. Bytes that do
// not decode as UTF-8 are dropped rather than failing the whole file.
func ParseFile(filePath string) ([]models.Record, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	var records []models.Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "")
		if record := ParseLine(line); record != nil {
			records = append(records, record)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return records, nil
}

// ParseFileToChannel streams the observations of one log file to the results
// channel, tagging each with the file id and a per-line checksum used later
// for idempotency checks. Unreadable files are reported on the errors channel;
// unparseable lines are skipped without a report.
func ParseFileToChannel(filePath string, fileID int, results chan<- *models.Observation, errors chan<- models.FileError) error {
	file, err := os.Open(filePath)
	if err != nil {
		errors <- models.FileError{FileID: fileID, Message: "Failed to open file", Err: err}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "")
		record := ParseLine(line)
		if record == nil {
			continue
		}

		results <- &models.Observation{
			Record:   record,
			FileID:   fileID,
			CheckSum: checksum.CalculateHash(record.Values(models.AllColumns)),
		}
	}

	if err := scanner.Err(); err != nil {
		errors <- models.FileError{FileID: fileID, Message: "Failed to read file", Err: err}
		return err
	}

	return nil
}
