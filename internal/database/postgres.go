package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antoninobrosio/maxconverter/internal/models"
)

const (
	FILE_STATUS_PROCESSING       = "PROCESSING"
	FILE_STATUS_DONE             = "DONE"
	FILE_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	FILE_STATUS_FATAL            = "FATAL"
)

// DBManager abstracts the observation archive so the ingestion pipeline and
// the query server can be tested against mocks.
type DBManager interface {
	CreateFileRecordsTable() error
	CreateObservationsTable() error
	CreateObservationIndexes() error
	DropObservationIndexes() error
	CreateWorkerStagingTables(numTables int) ([]string, error)
	DropWorkerStagingTable(tableName string) error
	InsertFileRecord(fileName string, processedAt time.Time, status string, checksum string) (int, error)
	UpdateFileStatus(fileID int, status string, errors any) error
	IsFileAlreadyProcessed(checksum string) (bool, error)
	IsArchiveEmpty() (bool, error)
	InsertAllStagingTableData(observations []*models.Observation, stagingTableName string) error
	InsertDiffFromStagingTable(observations []*models.Observation, stagingTableName string) error
	GetObservationsByName(name string, limit int) ([]models.Record, error)
}

func ConnectDB(connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	ctx    context.Context
}

func NewPostgresDBManager(ctx context.Context, pool *pgxpool.Pool) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool, ctx: ctx}
}

func (m *PostgresDBManager) CreateFileRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS observation_files (
		id SERIAL PRIMARY KEY,
		file_name VARCHAR(255) NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
		checksum VARCHAR(64),
		errors jsonb
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating observation_files table: %v", err)
	}

	return nil
}

// CreateObservationsTable creates the archive table. Field values are stored
// as text exactly as they appeared in the source log; HJD in particular is
// never parsed into a timestamp or numeric.
func (m *PostgresDBManager) CreateObservationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS observations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		hjd TEXT NOT NULL DEFAULT '',
		mag TEXT NOT NULL DEFAULT '',
		mag_err TEXT NOT NULL DEFAULT '',
		filter TEXT NOT NULL DEFAULT '',
		file_id INTEGER,
		checksum VARCHAR(64) NOT NULL
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating observations table: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) CreateWorkerStagingTables(numTables int) ([]string, error) {
	if numTables <= 0 {
		return nil, nil
	}

	stagingTableNames := make([]string, numTables)
	for w := 1; w <= numTables; w++ {
		stagingTableNames[w-1] = fmt.Sprintf("observations_staging_worker_%d", w)
	}

	tx, err := m.dbpool.Begin(m.ctx)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %v", err)
	}

	existingTables := make(map[string]bool)
	placeholders := make([]string, len(stagingTableNames))
	args := make([]interface{}, len(stagingTableNames))

	for i, name := range stagingTableNames {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = name
	}

	checkQuery := fmt.Sprintf(
		`SELECT tablename FROM pg_tables WHERE tablename = ANY(ARRAY[%s])`,
		strings.Join(placeholders, ", "))

	rows, err := tx.Query(m.ctx, checkQuery, args...)
	if err != nil {
		rx := tx.Rollback(m.ctx)
		if rx != nil {
			log.Printf("Error rolling back transaction: %v", rx)
		}
		return nil, fmt.Errorf("error checking existing staging tables: %w", err)
	}

	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			rows.Close()
			rx := tx.Rollback(m.ctx)
			if rx != nil {
				log.Printf("Error rolling back transaction: %v", rx)
			}
			return nil, fmt.Errorf("error scanning tablename: %w", err)
		}
		existingTables[tableName] = true
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		rx := tx.Rollback(m.ctx)
		if rx != nil {
			log.Printf("Error rolling back transaction: %v", rx)
		}
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	for _, tableName := range stagingTableNames {
		if !existingTables[tableName] {
			query := fmt.Sprintf(`CREATE UNLOGGED TABLE IF NOT EXISTS %s (LIKE observations INCLUDING DEFAULTS);`,
				pgx.Identifier{tableName}.Sanitize())

			_, err := tx.Exec(m.ctx, query)
			if err != nil {
				rx := tx.Rollback(m.ctx)
				if rx != nil {
					log.Printf("Error rolling back transaction: %v", rx)
				}
				return nil, fmt.Errorf("error creating worker staging table %s: %v", tableName, err)
			}
			log.Printf("Created staging table %s", tableName)
		} else {
			log.Printf("Staging table %s already exists, skipping creation", tableName)
		}
	}

	if err := tx.Commit(m.ctx); err != nil {
		return nil, fmt.Errorf("error committing transaction: %v", err)
	}

	return stagingTableNames, nil
}

func (m *PostgresDBManager) DropWorkerStagingTable(tableName string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pgx.Identifier{tableName}.Sanitize())
	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error dropping worker staging table %s: %v", tableName, err)
	}
	return nil
}

func (m *PostgresDBManager) CreateObservationIndexes() error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_observations_name ON observations (name) INCLUDE (hjd, mag, mag_err, filter);`,
	}

	for _, query := range queries {
		_, err := m.dbpool.Exec(m.ctx, query)
		if err != nil {
			return fmt.Errorf("error creating index: %v", err)
		}
	}

	return nil
}

func (m *PostgresDBManager) DropObservationIndexes() error {
	queries := []string{
		`DROP INDEX IF EXISTS idx_observations_name`,
	}

	for _, query := range queries {
		_, err := m.dbpool.Exec(m.ctx, query)
		if err != nil {
			return fmt.Errorf("error dropping index: %v", err)
		}
	}

	return nil
}

func (m *PostgresDBManager) InsertFileRecord(fileName string, processedAt time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO observation_files (file_name, processed_at, status, checksum)
	VALUES ($1, $2, $3, $4)
	RETURNING id;`

	var fileID int
	err := m.dbpool.QueryRow(m.ctx, query, fileName, processedAt, status, checksum).Scan(&fileID)
	if err != nil {
		return 0, fmt.Errorf("error inserting file record: %v", err)
	}

	return fileID, nil
}

func (m *PostgresDBManager) UpdateFileStatus(fileID int, status string, errors any) error {
	query := `
	UPDATE observation_files
	SET status = $1,
		errors = $2
	WHERE id = $3;`

	_, err := m.dbpool.Exec(m.ctx, query, status, errors, fileID)
	if err != nil {
		return fmt.Errorf("error updating file status: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) IsFileAlreadyProcessed(checksum string) (bool, error) {
	query := `
	SELECT id
	FROM observation_files
	WHERE checksum = $1 AND status = 'DONE';`

	var id int

	err := m.dbpool.QueryRow(m.ctx, query, checksum).Scan(&id)

	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %v", err)
	}

	return true, nil
}

// IsArchiveEmpty reports whether the observations table has no rows yet. An
// empty archive can take the fast insert path that skips idempotency checks.
func (m *PostgresDBManager) IsArchiveEmpty() (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM observations LIMIT 1);`

	var hasRows bool
	if err := m.dbpool.QueryRow(m.ctx, query).Scan(&hasRows); err != nil {
		return false, fmt.Errorf("error checking if observations table is empty: %v", err)
	}

	return !hasRows, nil
}

func (m *PostgresDBManager) CopyObservationsIntoStagingTable(tx pgx.Tx, observations []*models.Observation, stagingTableName string) error {
	// The column order here must match the order in the `observations` table.
	columnNames := []string{
		"name", "hjd", "mag", "mag_err", "filter", "file_id", "checksum",
	}

	copySource := pgx.CopyFromSlice(len(observations), func(i int) ([]interface{}, error) {
		obs := observations[i]
		return []interface{}{
			obs.Record.Get(models.ColumnName),
			obs.Record.Get(models.ColumnHJD),
			obs.Record.Get(models.ColumnMag),
			obs.Record.Get(models.ColumnMagErr),
			obs.Record.Get(models.ColumnFilter),
			obs.FileID,
			obs.CheckSum,
		}, nil
	})

	_, err := tx.CopyFrom(
		m.ctx,
		pgx.Identifier{stagingTableName},
		columnNames,
		copySource,
	)

	return err
}

func (m *PostgresDBManager) InsertAllStagingTableData(observations []*models.Observation, stagingTableName string) error {
	tx, err := m.dbpool.Begin(m.ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback(m.ctx)

	log.Printf("Bulk loading %d observations into staging table %s", len(observations), stagingTableName)
	err = m.CopyObservationsIntoStagingTable(tx, observations, stagingTableName)
	if err != nil {
		return fmt.Errorf("unable to copy observations to staging table %s: %v", stagingTableName, err)
	}

	insertQuery := fmt.Sprintf(`
	INSERT INTO observations (name, hjd, mag, mag_err, filter, file_id, checksum)
	SELECT name, hjd, mag, mag_err, filter, file_id, checksum
	FROM %s;
	`, pgx.Identifier{stagingTableName}.Sanitize())

	log.Printf("Inserting all data from staging table %s to main table.", stagingTableName)
	_, err = tx.Exec(m.ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("error inserting all data from staging table %s: %v", stagingTableName, err)
	}

	truncateQuery := fmt.Sprintf(`TRUNCATE %s;`, pgx.Identifier{stagingTableName}.Sanitize())
	_, err = tx.Exec(m.ctx, truncateQuery)
	if err != nil {
		log.Printf("WARN: failed to truncate staging table %s: %v", stagingTableName, err)
	}

	return tx.Commit(m.ctx)
}

// InsertDiffFromStagingTable inserts the difference between staging table data
// and observations using a CTE to identify staging rows whose checksum is not
// yet archived.
func (m *PostgresDBManager) InsertDiffFromStagingTable(observations []*models.Observation, stagingTableName string) error {
	tx, err := m.dbpool.Begin(m.ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback(m.ctx)

	log.Printf("Bulk loading %d observations into staging table %s", len(observations), stagingTableName)
	err = m.CopyObservationsIntoStagingTable(tx, observations, stagingTableName)
	if err != nil {
		return fmt.Errorf("unable to copy observations to staging table %s: %v", stagingTableName, err)
	}
	insertDiffQuery := fmt.Sprintf(`
	WITH staging_diff AS (
		SELECT s.name, s.hjd, s.mag, s.mag_err, s.filter, s.file_id, s.checksum
		FROM %s s
		WHERE NOT EXISTS (
			SELECT 1
			FROM observations o
			WHERE o.checksum = s.checksum
		)
	)
	INSERT INTO observations (name, hjd, mag, mag_err, filter, file_id, checksum)
	SELECT name, hjd, mag, mag_err, filter, file_id, checksum
	FROM staging_diff;
	`, pgx.Identifier{stagingTableName}.Sanitize())

	log.Printf("Inserting differences from staging table %s to main table using CTE.", stagingTableName)
	_, err = tx.Exec(m.ctx, insertDiffQuery)
	if err != nil {
		return fmt.Errorf("error inserting differences from staging table %s: %v", stagingTableName, err)
	}

	truncateQuery := fmt.Sprintf(`TRUNCATE %s;`, pgx.Identifier{stagingTableName}.Sanitize())
	_, err = tx.Exec(m.ctx, truncateQuery)
	if err != nil {
		log.Printf("WARN: failed to truncate staging table %s: %v", stagingTableName, err)
	}

	return tx.Commit(m.ctx)
}

// GetObservationsByName returns archived observations for a target in
// insertion order. A limit of 0 or less means no limit.
func (m *PostgresDBManager) GetObservationsByName(name string, limit int) ([]models.Record, error) {
	query := `
	SELECT name, hjd, mag, mag_err, filter
	FROM observations
	WHERE name = $1
	ORDER BY id`

	args := []interface{}{name}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := m.dbpool.Query(m.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying observations for %s: %w", name, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var targetName, hjd, mag, magErr, filter string
		if err := rows.Scan(&targetName, &hjd, &mag, &magErr, &filter); err != nil {
			return nil, fmt.Errorf("error scanning observation row: %w", err)
		}
		records = append(records, models.Record{
			models.ColumnName:   targetName,
			models.ColumnHJD:    hjd,
			models.ColumnMag:    mag,
			models.ColumnMagErr: magErr,
			models.ColumnFilter: filter,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over observation rows: %w", err)
	}

	return records, nil
}
