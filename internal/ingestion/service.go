package ingestion

import (
	"log"

	"github.com/antoninobrosio/maxconverter/internal/config"
	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/models"
)

type IngestionService struct {
	dbManager     database.DBManager
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	config        config.Config
}

func NewIngestionService(dbManager database.DBManager, setupService ISetup, worker Worker, processor Processor, cfg config.Config) *IngestionService {
	return &IngestionService{
		dbManager:     dbManager,
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		config:        cfg,
	}
}

// Execute orchestrates the extraction workflow for a directory of logs.
func (h *IngestionService) Execute(filesPath string) error {
	// Step 0: Setup the extraction environment.
	environmentConfig, err := h.setupService.build(h.config.ResultsChannelSize)

	if err != nil {
		return err
	}

	channels, waitGroups, fileMap, fileErrorsMap := environmentConfig.GetValues()

	// Step 0.1: Discover candidate log files.
	log.Println("Scanning for photometric log files...")
	fileInfos, err := h.fileProcessor.ScanForFiles(filesPath)
	if err != nil {
		log.Printf("Failed to scan files: %v", err)
		return err
	}

	// Step 0.2: Setup the database and get the cleanup function.
	cleanup, archiveWasEmpty, err := h.setupDatabase()
	if err != nil {
		log.Printf("Failed to setup database: %v", err)
		return err
	}
	defer cleanup()
	defer func() {
		log.Println("Re-creating observation indexes...")
		if err := h.dbManager.CreateObservationIndexes(); err != nil {
			log.Printf("Failed to re-create observation indexes: %v", err)
		}
	}()

	// Step 0.3: Drop indexes before starting for bulk-load efficiency; the
	// deferred call above makes sure they come back after the process.
	log.Println("Dropping observation indexes...")
	h.dbManager.DropObservationIndexes()

	// Step 0.4: Setup the async worker channels and wait groups VERY IMPORTANT: can cause panic if not done
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 1: Preprocess files and send jobs to the parser workers.
	// - Calculates check sums for files and skips the ones already processed
	// - Saves file record to db
	// This is done in a goroutine to allow the main flow to continue with worker setup.
	// Sharing MainWg with error worker
	dispatcherWorkerRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(fileInfos, *fileMap)
	if err != nil {
		return err
	}
	dispatcherWorkerRunner.Run()

	// Step 2: Setup the error worker, this worker will handle async errors from the extraction process
	// Sharing MainWg with dispatcher worker
	errorWorkerRunner, mainWaitGroup, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return err
	}
	// Step 2.1: Start error worker
	errorWorkerRunner.Run(fileErrorsMap)

	// Step 3: Setup parser workers
	// - Extract observations line by line, skipping lines that carry no data
	// - Send observations to the results channel
	parserWorkersRunner, parserWorkerWaitGroup, err := h.asyncWorker.SetupParserWorkers(h.config.NumParserWorkers)
	if err != nil {
		return err
	}

	// Step 3.1: Start parser workers
	parserWorkersRunner.Run()

	// Step 4: Configure DB workers. This function will return a factory function to start the DB workers goroutines.
	// - DB workers batch observations and bulk load them through staging tables
	dbWorkersRunner, dbWorkerWaitGroup, err := h.asyncWorker.SetupDBWorkers(h.config.NumDBWorkers)

	if err != nil {
		return err
	}

	// Step 5: Start DB workers. The handler treats the empty-archive case separately for better readability
	err = dbWorkersRunner.Run(func(observations *[]*models.Observation, stagingTableName string) error {
		if archiveWasEmpty {
			// empty archive can benefit from inserts without idempotency checks which are faster
			return h.dbManager.InsertAllStagingTableData(*observations, stagingTableName)
		} else {
			// there might be data already archived, gotta check for duplicates
			return h.dbManager.InsertDiffFromStagingTable(*observations, stagingTableName)
		}
	})

	if err != nil {
		return err
	}

	// Step 6: Wait for all processing to complete.
	log.Println("Waiting for parser workers to finish...")
	parserWorkerWaitGroup.Wait()

	// Step 6.1: After parsers are done, close the results channel to signal DB workers to finish.
	close(channels.Results)

	// Step 6.2: Wait for DB workers to finish
	log.Println("Waiting for DB workers to finish...")
	dbWorkerWaitGroup.Wait()

	// Step 6.3: Close the errors channel after all workers that can produce errors are done.
	close(channels.Errors)

	// Step 6.4: Wait for file error worker to finish
	log.Println("Waiting for file error worker to finish...")
	mainWaitGroup.Wait()

	// Step 7: Update each file record with the status of the operation and the collected errors
	h.fileProcessor.UpdateFileStatus(fileErrorsMap, fileMap)

	log.Println("Extraction process finished.")
	return nil
}

func (h *IngestionService) setupDatabase() (func(), bool, error) {
	archiveWasEmpty, err := h.dbManager.IsArchiveEmpty()
	if err != nil {
		log.Printf("Failed to check archive state: %v", err)
		return nil, false, err
	}

	log.Printf("Creating %d staging tables", h.config.NumDBWorkers)

	// Create staging tables for each DB worker to work in isolation
	stagingTableNames, err := h.dbManager.CreateWorkerStagingTables(h.config.NumDBWorkers)
	if err != nil {
		log.Printf("Failed to create staging tables: %v", err)
		return nil, archiveWasEmpty, err
	}

	// Return a cleanup function to be deferred by the caller.
	return func() {
		for _, tableName := range stagingTableNames {
			log.Printf("Cleaning up staging table %s", tableName)
			h.dbManager.DropWorkerStagingTable(tableName)
		}
	}, archiveWasEmpty, nil
}
