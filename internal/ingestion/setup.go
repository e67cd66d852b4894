package ingestion

import (
	"sync"

	"github.com/antoninobrosio/maxconverter/internal/models"
)

type ISetup interface {
	build(resultsChannelSize int) (models.SetupReturn, error)
}

type Setup struct{}

// Instantiate all channels and data structures used by the concurrent
// extraction process. Keeping it in a separate struct makes it easy to
// leverage DI for testing.
func (h Setup) build(resultsChannelSize int) (models.SetupReturn, error) {
	jobs := make(chan models.FileProcessingJob, 100)
	errors := make(chan models.FileError, 100)
	results := make(chan *models.Observation, resultsChannelSize)

	channels := models.ExtractionChannels{
		Results: results,
		Errors:  errors,
		Jobs:    jobs,
	}

	var parserWg, dbWg, mainWg sync.WaitGroup
	fileMap := make(models.FileMap)
	fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.FileError)}
	return models.SetupReturn{
		Channels:      &channels,
		WaitGroups:    &models.ExtractionWaitGroups{ParserWg: &parserWg, DbWg: &dbWg, MainWg: &mainWg},
		FileMap:       &fileMap,
		FileErrorsMap: &fileErrorsMap,
	}, nil
}
