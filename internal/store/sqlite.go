package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLite keeps the latest record in a one-row SQLite table. With the default
// ":memory:" DSN the data still lives only as long as the process.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dbPath and applies the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and the slot only
	// ever has one writer anyway.
	db.SetMaxOpenConns(1)

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// Set upserts the single slot row.
func (s *SQLite) Set(ctx context.Context, record *models.AnalysisRecord) error {
	if record == nil {
		return errors.New("nil record")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	query := `
		INSERT INTO latest_analysis (slot, record_id, record, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			record_id = excluded.record_id,
			record = excluded.record,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, record.ID, string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Latest reads the slot row or returns apperrors.ErrNoData.
func (s *SQLite) Latest(ctx context.Context) (*models.AnalysisRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM latest_analysis WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNoData
	}
	if err != nil {
		return nil, err
	}

	var record models.AnalysisRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("error decoding record: %w", err)
	}
	return &record, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
