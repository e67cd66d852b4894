package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/antoninobrosio/maxconverter/internal/database"
	"github.com/antoninobrosio/maxconverter/internal/models"
	"github.com/antoninobrosio/maxconverter/internal/table"
)

type ObservationService struct {
	DBManager database.DBManager
}

func NewObservationService(dbManager database.DBManager) *ObservationService {
	return &ObservationService{DBManager: dbManager}
}

// GetObservations serves archived observations for a target, either as JSON
// or as the fixed-width text table (`?format=table`). The rendered columns
// and their order follow the `columns` query parameter.
func (h *ObservationService) GetObservations(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/observations/")
	if name == "" {
		http.Error(w, "Target name is required in the URL path /observations/{name}", http.StatusBadRequest)
		return
	}

	columns, err := parseColumnsParam(r.URL.Query().Get("columns"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid 'limit' value. Use a non-negative integer.", http.StatusBadRequest)
			return
		}
	}

	records, err := h.DBManager.GetObservationsByName(name, limit)
	if err != nil {
		http.Error(w, "Failed to retrieve observations", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "table" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, table.Render(records, columns))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// parseColumnsParam turns a comma-separated column selection into an ordered
// column list, defaulting to HJD, MAG, MAG_ERR when empty.
func parseColumnsParam(param string) ([]string, error) {
	if strings.TrimSpace(param) == "" {
		return models.DefaultColumns, nil
	}

	var columns []string
	for _, column := range strings.Split(param, ",") {
		column = strings.ToUpper(strings.TrimSpace(column))
		if !models.IsValidColumn(column) {
			return nil, fmt.Errorf("unknown column %q, valid columns are: %s", column, strings.Join(models.AllColumns, ", "))
		}
		columns = append(columns, column)
	}

	return columns, nil
}
