package stores

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// every connection to :memory: opens a distinct database
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	sep := "?"
	if strings.Contains(s.cfg.Path, "?") {
		sep = "&"
	}
	dsn := s.cfg.Path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SaveLibrary stores doc as the next version of the library name. Saving
// a document identical to the latest version returns that version.
func (s *SQLiteStore) SaveLibrary(ctx context.Context, name string, doc *document.Library) (*Snapshot, error) {
	if doc == nil {
		return nil, fmt.Errorf("library document is required")
	}
	metadata := map[string]int{
		"object_classes":   doc.Objects.Len(),
		"relation_classes": doc.Relations.Len(),
	}
	return s.save(ctx, SnapshotKindLibrary, name, doc, nil, metadata)
}

// GetLibrary returns a version of the library name. Version 0 is the
// latest.
func (s *SQLiteStore) GetLibrary(ctx context.Context, name string, version int) (*Snapshot, error) {
	return s.get(ctx, SnapshotKindLibrary, name, version)
}

// SaveModel stores doc as the next version of the model name. libraryID,
// when set, links the library snapshot the model was saved with.
func (s *SQLiteStore) SaveModel(ctx context.Context, name string, doc *document.Object, libraryID *string) (*Snapshot, error) {
	if doc == nil {
		return nil, fmt.Errorf("model document is required")
	}
	metadata := map[string]interface{}{
		"objects":   doc.Objects.Len(),
		"relations": doc.Relations.Len(),
	}
	if doc.Library != "" {
		metadata["library"] = doc.Library
	}
	return s.save(ctx, SnapshotKindModel, name, doc, libraryID, metadata)
}

// GetModel returns a version of the model name. Version 0 is the latest.
func (s *SQLiteStore) GetModel(ctx context.Context, name string, version int) (*Snapshot, error) {
	return s.get(ctx, SnapshotKindModel, name, version)
}

func (s *SQLiteStore) save(ctx context.Context, kind SnapshotKind, name string, doc interface{}, libraryID *string, metadata interface{}) (*Snapshot, error) {
	if name == "" {
		return nil, fmt.Errorf("snapshot name is required")
	}

	var buf bytes.Buffer
	if err := document.Encode(&buf, doc, document.FormatJSON, 0); err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", kind, name, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	hash := hex.EncodeToString(sum[:])

	latest, err := s.get(ctx, kind, name, 0)
	switch {
	case err == nil && latest.Hash == hash && sameLibrary(latest.LibraryID, libraryID):
		log.Debug().
			Str("kind", string(kind)).
			Str("name", name).
			Int("version", latest.Version).
			Msg("Snapshot unchanged")
		return latest, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	snap := &Snapshot{
		ID:        uuid.New().String(),
		Kind:      kind,
		Name:      name,
		Hash:      hash,
		Content:   buf.Bytes(),
		LibraryID: libraryID,
		Metadata:  string(meta),
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO snapshots (id, kind, name, version, hash, content, library_id, metadata, created_at)
		SELECT ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?, ?
		FROM snapshots
		WHERE kind = ? AND name = ?
		RETURNING version
	`

	err = s.db.QueryRowContext(ctx, query,
		snap.ID,
		snap.Kind,
		snap.Name,
		snap.Hash,
		snap.Content,
		snap.LibraryID,
		snap.Metadata,
		snap.CreatedAt,
		snap.Kind,
		snap.Name,
	).Scan(&snap.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s snapshot: %w", kind, err)
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordSnapshotSaved(string(kind))
		_ = tel.Events.PublishSnapshotSaved(string(kind), name, snap.Version)
	}

	return snap, nil
}

func sameLibrary(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

const snapshotColumns = `id, kind, name, version, hash, content, library_id, metadata, created_at`

func (s *SQLiteStore) get(ctx context.Context, kind SnapshotKind, name string, version int) (*Snapshot, error) {
	var row *sql.Row
	if version <= 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+snapshotColumns+`
			FROM snapshots
			WHERE kind = ? AND name = ?
			ORDER BY version DESC
			LIMIT 1
		`, kind, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+snapshotColumns+`
			FROM snapshots
			WHERE kind = ? AND name = ? AND version = ?
		`, kind, name, version)
	}

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		if version <= 0 {
			return nil, fmt.Errorf("%s %s: %w", kind, name, ErrNotFound)
		}
		return nil, fmt.Errorf("%s %s v%d: %w", kind, name, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s snapshot: %w", kind, err)
	}
	return snap, nil
}

// GetSnapshot retrieves a snapshot by ID
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snap, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	snap := &Snapshot{}
	err := row.Scan(
		&snap.ID,
		&snap.Kind,
		&snap.Name,
		&snap.Version,
		&snap.Hash,
		&snap.Content,
		&snap.LibraryID,
		&snap.Metadata,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots lists snapshots newest first, without their content. Nil
// filters match everything.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, kind *SnapshotKind, name *string, limit, offset int) ([]*Snapshot, error) {
	query := `
		SELECT id, kind, name, version, hash, library_id, metadata, created_at
		FROM snapshots
		WHERE (? IS NULL OR kind = ?)
		  AND (? IS NULL OR name = ?)
		ORDER BY name, kind, version DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, kind, kind, name, name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		snap := &Snapshot{}
		err := rows.Scan(
			&snap.ID,
			&snap.Kind,
			&snap.Name,
			&snap.Version,
			&snap.Hash,
			&snap.LibraryID,
			&snap.Metadata,
			&snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// DeleteSnapshot deletes a snapshot by ID. Models saved with a deleted
// library keep their content and lose the link.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}

	return nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO events (event_id, snapshot_id, type, source, model, subject, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.EventID,
		event.SnapshotID,
		event.Type,
		event.Source,
		event.Model,
		event.Subject,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// ListEvents retrieves events, newest first, with optional filters and
// pagination
func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, event_id, snapshot_id, type, source, model, subject, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR model = ?)
		  AND (? IS NULL OR type = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Model, filter.Model,
		filter.Type, filter.Type,
		filter.Level, filter.Level,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.SnapshotID,
			&event.Type,
			&event.Source,
			&event.Model,
			&event.Subject,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
