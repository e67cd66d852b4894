package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/models"
)

// TestFileProcessor_ScanForFiles tests the ScanForFiles method of FileProcessor.
func TestFileProcessor_ScanForFiles(t *testing.T) {
	tempDir := t.TempDir()

	// Create dummy files for testing
	file1Path := filepath.Join(tempDir, "night1.csv")
	assert.NoError(t, os.WriteFile(file1Path, []byte("V1234,2459000.123,12.345,0.012,V\n"), 0644))

	file2Path := filepath.Join(tempDir, "night2.txt")
	assert.NoError(t, os.WriteFile(file2Path, []byte("obs 2459000.5 12.3 0.05 R\n"), 0644))

	// A file with an unrecognized extension must be skipped
	file3Path := filepath.Join(tempDir, "thumbnail.png")
	assert.NoError(t, os.WriteFile(file3Path, []byte{0x89, 0x50, 0x4e, 0x47}, 0644))

	dbManager := new(MockDBManager)
	fileProcessor := NewFileProcessor(dbManager)

	t.Run("Success", func(t *testing.T) {
		fileInfos, err := fileProcessor.ScanForFiles(tempDir)

		assert.NoError(t, err)
		assert.Len(t, fileInfos, 2)

		found1 := false
		found2 := false
		found3 := false
		for _, info := range fileInfos {
			if info.Path == file1Path {
				found1 = true
			}
			if info.Path == file2Path {
				found2 = true
			}
			if info.Path == file3Path {
				found3 = true
			}
		}
		assert.True(t, found1, "night1.csv not found in scan results")
		assert.True(t, found2, "night2.txt not found in scan results")
		assert.False(t, found3, "thumbnail.png should not be found in scan results")
	})

	t.Run("DirectoryNotFound", func(t *testing.T) {
		_, err := fileProcessor.ScanForFiles("non_existent_dir")
		assert.Error(t, err)
	})
}

// TestFileProcessor_UpdateFileStatus tests the UpdateFileStatus method of FileProcessor.
func TestFileProcessor_UpdateFileStatus(t *testing.T) {
	dbManager := new(MockDBManager)
	fileProcessor := NewFileProcessor(dbManager)

	t.Run("StatusDone", func(t *testing.T) {
		fileMap := models.FileMap{1: "night1.csv"}
		fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.FileError)}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE, mock.Anything).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(&fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("StatusDoneWithErrors", func(t *testing.T) {
		fileMap := models.FileMap{1: "night1.csv"}
		fileErrors := []models.FileError{{Message: "some error"}}
		fileErrorsMap := models.FileErrorMap{Errors: map[int][]models.FileError{1: fileErrors}}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE_WITH_ERRORS, fileErrors).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(&fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("StatusFatalWhenErrorCapIsHit", func(t *testing.T) {
		fileMap := models.FileMap{1: "night1.csv"}
		fileErrors := make([]models.FileError, maxErrorsPerFile)
		for i := range fileErrors {
			fileErrors[i] = models.FileError{FileID: 1, Message: "bad line"}
		}
		fileErrorsMap := models.FileErrorMap{Errors: map[int][]models.FileError{1: fileErrors}}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_FATAL, fileErrors).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(&fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("UpdateError", func(t *testing.T) {
		fileMap := models.FileMap{1: "night1.csv"}
		fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.FileError)}
		updateErr := fmt.Errorf("db update failed")

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE, mock.Anything).Return(updateErr).Once()

		err := fileProcessor.UpdateFileStatus(&fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})
}
