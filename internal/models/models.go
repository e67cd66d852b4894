package models

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Column names recognized in photometric log records.
const (
	ColumnName   = "NAME"
	ColumnHJD    = "HJD"
	ColumnMag    = "MAG"
	ColumnMagErr = "MAG_ERR"
	ColumnFilter = "FILTER"
)

// AllColumns lists every available output column in canonical order.
var AllColumns = []string{ColumnName, ColumnHJD, ColumnMag, ColumnMagErr, ColumnFilter}

// DefaultColumns are the columns enabled when the caller makes no selection.
var DefaultColumns = []string{ColumnHJD, ColumnMag, ColumnMagErr}

// Record maps a column name to its raw text value. Values are never parsed or
// validated numerically; they are carried and emitted as text. A nil Record
// means the source line contributed no data.
type Record map[string]string

// Get returns the value for a column, or the empty string when absent.
func (r Record) Get(column string) string {
	if r == nil {
		return ""
	}
	return r[column]
}

// Values returns the record's values in the order given by columns.
func (r Record) Values(columns []string) []string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = r.Get(column)
	}
	return values
}

// IsValidColumn reports whether name is one of the recognized columns.
func IsValidColumn(name string) bool {
	for _, column := range AllColumns {
		if column == name {
			return true
		}
	}
	return false
}

// Observation is a parsed record bound to its source file, carrying the
// per-line checksum used for idempotency checks in the archive.
type Observation struct {
	Record   Record `json:"record,omitempty"`
	FileID   int    `json:"file_id,omitempty"`
	CheckSum string `json:"checksum,omitempty"`
}

type FileError struct {
	FileID      int
	Message     string
	Err         error
	Observation *Observation
}

func (e *FileError) Error() string {
	var observationDetails string
	if e.Observation != nil {
		observationJSON, err := json.Marshal(e.Observation)
		if err != nil {
			observationDetails = "failed to marshal observation to JSON"
		} else {
			observationDetails = string(observationJSON)
		}
	}

	if e.Err != nil {
		if observationDetails != "" {
			return fmt.Sprintf("FileID %d: %s - %v - Observation: %s", e.FileID, e.Message, e.Err, observationDetails)
		}
		return fmt.Sprintf("FileID %d: %s - %v", e.FileID, e.Message, e.Err)
	}

	if observationDetails != "" {
		return fmt.Sprintf("FileID %d: %s - Observation: %s", e.FileID, e.Message, observationDetails)
	}

	return fmt.Sprintf("FileID %d: %s", e.FileID, e.Message)
}

type FileProcessingJob struct {
	FilePath string
	FileID   int
}

type FileInfo struct {
	Path string
}

type FileErrorMap struct {
	Errors map[int][]FileError
	Mu     sync.Mutex
}

type ExtractionChannels struct {
	Results chan *Observation
	Errors  chan FileError
	Jobs    chan FileProcessingJob
}

type ExtractionWaitGroups struct {
	ParserWg *sync.WaitGroup
	DbWg     *sync.WaitGroup
	MainWg   *sync.WaitGroup
}

type FileMap = map[int]string

type SetupReturn struct {
	Channels      *ExtractionChannels
	WaitGroups    *ExtractionWaitGroups
	FileMap       *FileMap
	FileErrorsMap *FileErrorMap
}

func (s *SetupReturn) GetValues() (*ExtractionChannels, *ExtractionWaitGroups, *FileMap, *FileErrorMap) {
	return s.Channels, s.WaitGroups, s.FileMap, s.FileErrorsMap
}
