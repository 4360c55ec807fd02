package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/model"
	"github.com/gcbaptista/go-dupfinder/store/migrations"
)

// asOfLayout is fixed width so that lexical order matches chronological order.
const asOfLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists records and documents in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (creating if needed) the database at path and runs migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate runs all pending migrations.
func (s *SQLiteStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const recordColumns = "id, as_of, user_id, email, nickname, matrix_id, indexing, indexing_done"

func scanRecord(row rowScanner) (*model.TrackingRecord, error) {
	var rec model.TrackingRecord
	var asOf string
	if err := row.Scan(&rec.ID, &asOf, &rec.UserID, &rec.Email, &rec.Nickname,
		&rec.MatrixID, &rec.Indexing, &rec.IndexingDone); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(asOfLayout, asOf)
	if err != nil {
		return nil, fmt.Errorf("parsing as_of %q: %w", asOf, err)
	}
	rec.AsOf = parsed
	return &rec, nil
}

// LatestForUser returns the user's most recent record.
func (s *SQLiteStore) LatestForUser(ctx context.Context, userID string) (*model.TrackingRecord, error) {
	return latestForUser(ctx, s.db, userID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestForUser(ctx context.Context, q queryer, userID string) (*model.TrackingRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM tracking_records WHERE user_id = ?
		ORDER BY as_of DESC LIMIT 1
	`, userID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewUserRecordNotFoundError(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tracking record: %w", err)
	}
	return rec, nil
}

// GetRecord retrieves a record by ID.
func (s *SQLiteStore) GetRecord(ctx context.Context, recordID string) (*model.TrackingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM tracking_records WHERE id = ?
	`, recordID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewRecordNotFoundError(recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tracking record: %w", err)
	}
	return rec, nil
}

// Supersede deletes the user's latest run and inserts the new one in a single transaction.
func (s *SQLiteStore) Supersede(ctx context.Context, record *model.TrackingRecord, docs []model.Document) (*model.TrackingRecord, error) {
	if record == nil || record.UserID == "" {
		return nil, errors.NewValidationError("user_id", "record must belong to a user")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	superseded, err := latestForUser(ctx, tx, record.UserID)
	if err != nil && !errors.Is(err, errors.ErrRecordNotFound) {
		return nil, err
	}
	if superseded != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE record_id = ?", superseded.ID); err != nil {
			return nil, fmt.Errorf("deleting superseded documents: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tracking_records WHERE id = ?", superseded.ID); err != nil {
			return nil, fmt.Errorf("deleting superseded record: %w", err)
		}
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tracking_records (id, as_of, user_id, email, nickname, matrix_id, indexing, indexing_done)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, record.AsOf.UTC().Format(asOfLayout), record.UserID, record.Email, record.Nickname,
		record.MatrixID, record.Indexing, record.IndexingDone); err != nil {
		return nil, fmt.Errorf("saving tracking record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO documents (record_id, id, seq, text) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		if _, err := stmt.ExecContext(ctx, id, doc.ID, i, doc.Text); err != nil {
			return nil, fmt.Errorf("saving document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	record.ID = id
	return superseded, nil
}

// DeleteRecord removes a record; its documents are removed by cascade.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, recordID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tracking_records WHERE id = ?", recordID)
	if err != nil {
		return fmt.Errorf("deleting tracking record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewRecordNotFoundError(recordID)
	}
	return nil
}

// ListDocuments returns the record's documents in fetch order.
func (s *SQLiteStore) ListDocuments(ctx context.Context, recordID string) ([]model.Document, error) {
	if _, err := s.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, id, text FROM documents
		WHERE record_id = ? ORDER BY seq
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.RecordID, &doc.ID, &doc.Text); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// GetDocuments resolves keys one at a time, preserving key order.
func (s *SQLiteStore) GetDocuments(ctx context.Context, keys []model.DocKey) ([]model.Document, error) {
	result := make([]model.Document, 0, len(keys))
	for _, key := range keys {
		var doc model.Document
		err := s.db.QueryRowContext(ctx, `
			SELECT record_id, id, text FROM documents WHERE record_id = ? AND id = ?
		`, key.RecordID, key.DocID).Scan(&doc.RecordID, &doc.ID, &doc.Text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching document %s: %w", key, err)
		}
		result = append(result, doc)
	}
	return result, nil
}

// ClaimIndexing is a conditional update that only succeeds when indexing is not set.
func (s *SQLiteStore) ClaimIndexing(ctx context.Context, recordID, matrixID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracking_records SET indexing = 1, indexing_done = 0, matrix_id = ?
		WHERE id = ? AND indexing = 0
	`, matrixID, recordID)
	if err != nil {
		return fmt.Errorf("claiming tracking record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetRecord(ctx, recordID); err != nil {
			return err
		}
		return errors.NewAlreadyIndexingError(recordID)
	}
	return nil
}

// CompleteIndexing flips the record to done.
func (s *SQLiteStore) CompleteIndexing(ctx context.Context, recordID, matrixID string) error {
	return s.updateFlags(ctx, recordID, `
		UPDATE tracking_records SET matrix_id = ?, indexing = 0, indexing_done = 1 WHERE id = ?
	`, matrixID, recordID)
}

// ReleaseIndexing clears an indexing claim.
func (s *SQLiteStore) ReleaseIndexing(ctx context.Context, recordID string) error {
	return s.updateFlags(ctx, recordID, `
		UPDATE tracking_records SET matrix_id = '', indexing = 0 WHERE id = ?
	`, recordID)
}

// ReleaseStaleClaims clears the indexing claim of every record that holds one.
func (s *SQLiteStore) ReleaseStaleClaims(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tracking_records SET matrix_id = '', indexing = 0 WHERE indexing = 1
	`)
	if err != nil {
		return 0, fmt.Errorf("releasing stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("releasing stale claims: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) updateFlags(ctx context.Context, recordID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating tracking record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewRecordNotFoundError(recordID)
	}
	return nil
}
