package server

import (
	"net/http"
)

func SetupRoutes(observationHandler *ObservationService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/observations/", observationHandler.GetObservations)

	return mux
}
