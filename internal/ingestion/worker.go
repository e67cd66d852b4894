package ingestion

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/models"
	"github.com/antoninobrosio/maxconverter/internal/parser"
	"github.com/antoninobrosio/maxconverter/pkg/checksum"
)

type Runner[T any] struct {
	Run T
}

// maxErrorsPerFile caps how many errors are collected for a single file. A
// file that hits the cap is considered malformed and gets a fatal status.
const maxErrorsPerFile = 100

type AsyncWorkerConfig struct {
	NumDBWorkers int
	DBBatchSize  int
}

// Worker defines the interface for asynchronous processing tasks.
type Worker interface {
	WithChannels(channels *models.ExtractionChannels) Worker
	WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker
	SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error)
	SetupParserWorkers(numberOfWorkers int) (Runner[func()], *sync.WaitGroup, error)
	SetupDBWorkers(numDBWorkers int) (Runner[func(func(*[]*models.Observation, string) error) error], *sync.WaitGroup, error)
	SetupJobDispatcherWorker(fileInfos []models.FileInfo, fileMap models.FileMap) (Runner[func()], *sync.WaitGroup, error)
}

type AsyncWorker struct {
	config     AsyncWorkerConfig
	dbManager  database.DBManager
	channels   *models.ExtractionChannels
	waitGroups *models.ExtractionWaitGroups
}

func NewAsyncWorker(dbManager database.DBManager, cfg AsyncWorkerConfig) *AsyncWorker {
	return &AsyncWorker{
		dbManager: dbManager,
		config:    cfg,
	}
}

func (w *AsyncWorker) WithChannels(channels *models.ExtractionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

func (w *AsyncWorker) ParserWorker() {
	defer w.waitGroups.ParserWg.Done()
	for job := range w.channels.Jobs {
		log.Printf("Parser worker started job for file %s (ID: %d)\n", job.FilePath, job.FileID)
		err := parser.ParseFileToChannel(job.FilePath, job.FileID, w.channels.Results, w.channels.Errors)
		if err != nil {
			w.channels.Errors <- models.FileError{FileID: job.FileID, Message: "Failed to open or read file", Err: err}
		}
		log.Printf("Parser worker finished job for file %s (ID: %d)\n", job.FilePath, job.FileID)
	}
}

func (w *AsyncWorker) SetupParserWorkers(numberOfWorkers int) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.ParserWg.Add(1)
				go w.ParserWorker()
			}
		},
	}, w.waitGroups.ParserWg, nil
}

func (w *AsyncWorker) DbWorker(workerId int, stagingTableName string, resultsChan <-chan *models.Observation, errorsChan chan<- models.FileError, waitGroups *models.ExtractionWaitGroups, dbHandler func(*[]*models.Observation, string) error) {
	log.Printf("DB Worker %d: Starting to process observations using table %s\n", workerId, stagingTableName)
	defer waitGroups.DbWg.Done()
	observations := make([]*models.Observation, 0, w.config.DBBatchSize)

	flush := func(batchLabel string) {
		err := dbHandler(&observations, stagingTableName)
		if err != nil {
			// The batch failed, so report an error for each unique FileID in the batch.
			fileIDs := make(map[int]bool)
			for _, obs := range observations {
				fileIDs[obs.FileID] = true
			}
			for fileID := range fileIDs {
				errorsChan <- models.FileError{FileID: fileID, Message: fmt.Sprintf("Failed to insert %s of observations", batchLabel), Err: err}
			}
		}
	}

	for result := range resultsChan {
		observations = append(observations, result)
		if len(observations) >= w.config.DBBatchSize {
			log.Printf("DB Worker %d: Inserting batch of %d observations using table %s\n", workerId, len(observations), stagingTableName)
			flush("batch")
			observations = observations[:0] // Clear the slice
		}
	}

	// Insert any remaining observations
	if len(observations) > 0 {
		log.Printf("DB Worker %d: Inserting final batch of %d observations using table %s\n", workerId, len(observations), stagingTableName)
		flush("final batch")
	}

	log.Printf("DB worker %d finished.", workerId)
}

func (w *AsyncWorker) SetupDBWorkers(numDBWorkers int) (Runner[func(func(*[]*models.Observation, string) error) error], *sync.WaitGroup, error) {
	return Runner[func(func(*[]*models.Observation, string) error) error]{
		Run: func(dbHandler func(*[]*models.Observation, string) error) error {
			for workerId := 1; workerId <= numDBWorkers; workerId++ {
				stagingTableName := fmt.Sprintf("observations_staging_worker_%d", workerId)
				w.waitGroups.DbWg.Add(1)
				go w.DbWorker(workerId, stagingTableName, w.channels.Results, w.channels.Errors, w.waitGroups, dbHandler)
			}
			return nil
		},
	}, w.waitGroups.DbWg, nil
}

func (w *AsyncWorker) ErrorWorker(fileErrorsMap *models.FileErrorMap) {
	defer w.waitGroups.MainWg.Done()
	for fileErr := range w.channels.Errors {
		log.Printf("Caught error: %s\n", fileErr.Error())
		// limit the number of errors per file to prevent memory overflow, if more than maxErrorsPerFile errors are collected, then file is probably malformed
		if fileErr.FileID != -1 && len(fileErrorsMap.Errors[fileErr.FileID]) < maxErrorsPerFile {
			fileErrorsMap.Mu.Lock()
			fileErrorsMap.Errors[fileErr.FileID] = append(fileErrorsMap.Errors[fileErr.FileID], fileErr)
			fileErrorsMap.Mu.Unlock()
		} else if fileErr.FileID != -1 {
			// File has too many errors, skip it, and log for manual inspection
			log.Printf("File %d has too many errors, skipping\n", fileErr.FileID)
		}
	}
}

func (w *AsyncWorker) PreprocessAndDispatchJobs(
	fileInfos []models.FileInfo,
	fileMap models.FileMap,
) {
	defer close(w.channels.Jobs)
	defer w.waitGroups.MainWg.Done()

	for _, fileInfo := range fileInfos {
		fileChecksum, err := checksum.GetFileChecksum(fileInfo.Path)
		if err != nil {
			log.Printf("ERROR: Failed to calculate checksum for %s: %v. Skipping file.", fileInfo.Path, err)
			continue
		}

		isProcessed, err := w.dbManager.IsFileAlreadyProcessed(fileChecksum)
		if err != nil {
			log.Printf("ERROR: Failed to check if file %s is already processed: %v. Skipping file.", fileInfo.Path, err)
			continue
		}
		if isProcessed {
			log.Printf("INFO: File %s (checksum: %s) has already been processed. Skipping.", fileInfo.Path, fileChecksum)
			continue
		}

		fileID, err := w.dbManager.InsertFileRecord(
			fileInfo.Path,
			time.Now(),
			database.FILE_STATUS_PROCESSING,
			fileChecksum,
		)
		if err != nil {
			log.Printf("ERROR: Failed to insert file record for %s: %v. Skipping file.", fileInfo.Path, err)
			continue
		}

		fileMap[fileID] = fileInfo.Path

		log.Printf("Dispatching job for file: %s (FileID: %d)", fileInfo.Path, fileID)
		w.channels.Jobs <- models.FileProcessingJob{FilePath: fileInfo.Path, FileID: fileID}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(fileInfos []models.FileInfo, fileMap models.FileMap) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			w.waitGroups.MainWg.Add(1)
			go w.PreprocessAndDispatchJobs(fileInfos, fileMap)
		},
	}, w.waitGroups.MainWg, nil
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.FileErrorMap)]{
		Run: func(fileErrorsMap *models.FileErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(fileErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}
