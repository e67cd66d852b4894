package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/antoninobrosio/maxconverter/internal/models"
	"github.com/antoninobrosio/maxconverter/internal/output"
	"github.com/antoninobrosio/maxconverter/internal/parser"
	"github.com/antoninobrosio/maxconverter/internal/table"
)

func main() {
	inPath := flag.String("in", "", "path to the CSV/TXT photometric log to convert")
	outPath := flag.String("out", "", "output file path (default: next to the input, conventional name)")
	columnsFlag := flag.String("columns", strings.Join(models.DefaultColumns, ","), "comma-separated output columns")
	aavsoCode := flag.String("aavso", "", "AAVSO observer code (optional)")
	mpcCode := flag.String("mpc", "", "MPC observer code (optional)")
	flag.Parse()

	if *inPath == "" {
		log.Fatal("Please provide the input file with -in")
	}

	columns, err := parseColumns(*columnsFlag)
	if err != nil {
		log.Fatal(err)
	}

	records, err := parser.ParseFile(*inPath)
	if err != nil {
		log.Fatalf("Error while reading: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("No data found in file %s", *inPath)
	}

	destination := *outPath
	if destination == "" {
		fileName := output.DefaultFileName(*inPath, time.Now(), *aavsoCode, *mpcCode)
		destination = filepath.Join(filepath.Dir(*inPath), fileName)
	}

	if err := output.WriteTable(destination, table.Render(records, columns)); err != nil {
		log.Fatalf("Error while writing: %v", err)
	}

	log.Printf("Extracted %d records to %s", len(records), destination)
}

func parseColumns(columnsFlag string) ([]string, error) {
	var columns []string
	for _, column := range strings.Split(columnsFlag, ",") {
		column = strings.ToUpper(strings.TrimSpace(column))
		if column == "" {
			continue
		}
		if !models.IsValidColumn(column) {
			return nil, fmt.Errorf("unknown column %q, valid columns are: %s", column, strings.Join(models.AllColumns, ", "))
		}
		columns = append(columns, column)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("select at least one column")
	}

	return columns, nil
}
