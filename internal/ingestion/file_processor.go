package ingestion

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/models"
)

// logExtensions are the file extensions accepted when scanning a directory
// for photometric logs.
var logExtensions = map[string]bool{
	".csv": true,
	".txt": true,
	".log": true,
}

// Processor defines the interface for file processing operations.
type Processor interface {
	ScanForFiles(rootPath string) ([]models.FileInfo, error)
	UpdateFileStatus(fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error
}

// FileProcessor handles the initial stages of file processing: discovering
// candidate log files and updating file statuses after extraction.
type FileProcessor struct {
	dbManager database.DBManager
}

// NewFileProcessor creates a new FileProcessor with the given DBManager.
func NewFileProcessor(dbManager database.DBManager) *FileProcessor {
	return &FileProcessor{
		dbManager: dbManager,
	}
}

// ScanForFiles walks a directory and returns every photometric log candidate
// found. Files with unrecognized extensions are skipped with a log line but
// never fail the scan.
func (fp *FileProcessor) ScanForFiles(rootPath string) ([]models.FileInfo, error) {
	var fileInfos []models.FileInfo
	log.Printf("Scanning for files in: %s", rootPath)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err // Propagate errors from walking the path
		}
		if !info.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if !logExtensions[ext] {
				log.Printf("WARN: File %s has unrecognized extension %q. Skipping file.", path, ext)
				return nil // Skip this file, but continue walking
			}

			fileInfos = append(fileInfos, models.FileInfo{Path: path})
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	log.Printf("Found %d files to process.", len(fileInfos))
	return fileInfos, nil
}

func (fp *FileProcessor) UpdateFileStatus(fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error {
	for fileID := range *fileMap {
		fileErrors := fileErrorsMap.Errors[fileID]
		status := database.FILE_STATUS_DONE
		if len(fileErrors) >= maxErrorsPerFile {
			// The error cap was hit, the file is beyond salvaging.
			status = database.FILE_STATUS_FATAL
		} else if len(fileErrors) > 0 {
			status = database.FILE_STATUS_DONE_WITH_ERRORS
		}

		if err := fp.dbManager.UpdateFileStatus(fileID, status, fileErrors); err != nil {
			log.Printf("Failed to update status for fileID %d: %v\n", fileID, err)
		}
	}
	return nil
}
