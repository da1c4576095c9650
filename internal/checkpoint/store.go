package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"setlist/internal/config"
	"setlist/internal/logging"
	"setlist/internal/recognition"
	"setlist/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. Older databases are
// refused; progress is disposable so users clear it instead of migrating.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// WindowRecord is one completed window.
type WindowRecord struct {
	Index      int
	Start      time.Duration
	Duration   time.Duration
	Outcome    recognition.Outcome
	RecordedAt time.Time
}

// ProgressRecord is the resumable state of one source.
type ProgressRecord struct {
	Identity  SourceIdentity
	Digest    string
	RunID     string
	Windows   []WindowRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Completed indexes the recorded windows by window index.
func (p *ProgressRecord) Completed() map[int]WindowRecord {
	out := make(map[int]WindowRecord)
	if p == nil {
		return out
	}
	for _, w := range p.Windows {
		out[w.Index] = w
	}
	return out
}

// Summary describes a stored record for listing.
type Summary struct {
	Path       string
	Digest     string
	RunID      string
	Windows    int
	Identified int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store manages checkpoint persistence backed by SQLite.
type Store struct {
	db      *sql.DB
	path    string
	lockDir string
	logger  *slog.Logger
	now     func() time.Time
}

// Open connects to the progress database under the configured state
// directory, creating it on first use.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "ensure directories", "", err)
	}
	return OpenPath(cfg.ProgressDBPath(), cfg.LockDir(), logger)
}

// OpenPath opens the database at dbPath and keeps lock files in lockDir.
func OpenPath(dbPath, lockDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, dir := range []string{filepath.Dir(dbPath), lockDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "open", "create "+dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "open", dbPath, err)
	}
	// One connection keeps the pragmas below in force for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "open",
				fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{
		db:      db,
		path:    dbPath,
		lockDir: lockDir,
		logger:  logging.NewComponentLogger(logger, "checkpoint"),
		now:     time.Now,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "open", "initialize schema", err)
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the progress record for identity, or nil when none exists.
// A record stored for the same path under a different digest yields
// services.ErrSourceIdentityMismatch.
func (s *Store) Load(ctx context.Context, identity SourceIdentity) (*ProgressRecord, error) {
	var (
		digest, runID, created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT digest, run_id, created_at, updated_at FROM progress WHERE source_path = ?`,
		identity.Path,
	).Scan(&digest, &runID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "load", identity.Path, err)
	}
	if digest != identity.Digest() {
		return nil, services.Wrap(services.ErrSourceIdentityMismatch, "checkpoint", "load",
			fmt.Sprintf("%s changed since its progress was saved", identity.Path), nil)
	}

	record := &ProgressRecord{Identity: identity, Digest: digest, RunID: runID}
	record.CreatedAt, _ = parseTime(created)
	record.UpdatedAt, _ = parseTime(updated)

	windows, err := s.loadWindows(ctx, identity.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "load windows", identity.Path, err)
	}
	record.Windows = windows
	return record, nil
}

// Append durably records one completed window. The progress header is created
// on the first append and refreshed on every later one, in the same
// transaction as the window row.
func (s *Store) Append(ctx context.Context, identity SourceIdentity, runID string, window WindowRecord) error {
	now := s.now().UTC()
	if window.RecordedAt.IsZero() {
		window.RecordedAt = now
	}
	err := retryOnBusy(ctx, func() error {
		return s.appendTx(ctx, identity, runID, window, now)
	})
	if err != nil {
		if errors.Is(err, services.ErrSourceIdentityMismatch) {
			return err
		}
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "append",
			fmt.Sprintf("window %d of %s", window.Index, identity.Path), err)
	}
	return nil
}

func (s *Store) appendTx(ctx context.Context, identity SourceIdentity, runID string, window WindowRecord, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	digest := identity.Digest()
	var stored string
	err = tx.QueryRowContext(ctx, `SELECT digest FROM progress WHERE source_path = ?`, identity.Path).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO progress (source_path, digest, size_bytes, mod_time, run_id, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			identity.Path, digest, identity.Size, formatTime(identity.ModTime), runID,
			formatTime(now), formatTime(now),
		); err != nil {
			return fmt.Errorf("insert progress: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read progress: %w", err)
	case stored != digest:
		return services.Wrap(services.ErrSourceIdentityMismatch, "checkpoint", "append",
			fmt.Sprintf("%s changed since its progress was saved", identity.Path), nil)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE progress SET run_id = ?, updated_at = ? WHERE source_path = ?`,
			runID, formatTime(now), identity.Path,
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
	}

	m := window.Outcome.Match
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO windows (
            source_path, idx, start_ms, duration_ms, kind, artist, title, album,
            song_url, artwork_url, original_artist, original_title, reason, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.Path,
		window.Index,
		window.Start.Milliseconds(),
		window.Duration.Milliseconds(),
		string(window.Outcome.Kind),
		nullableString(m.Artist),
		nullableString(m.Title),
		nullableString(m.Album),
		nullableString(m.SongURL),
		nullableString(m.ArtworkURL),
		nullableString(m.OriginalArtist),
		nullableString(m.OriginalTitle),
		nullableString(window.Outcome.Reason),
		formatTime(window.RecordedAt),
	); err != nil {
		return fmt.Errorf("insert window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Clear deletes the record stored for path, whatever its digest. Clearing a
// missing record is not an error.
func (s *Store) Clear(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE source_path = ?`, path)
		return err
	})
	if err != nil {
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "clear", path, err)
	}
	return nil
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *Store) Flush(ctx context.Context) error {
	var busy, logFrames, checkpointed int
	err := s.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(FULL)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return services.Wrap(services.ErrCheckpointIO, "checkpoint", "flush", s.path, err)
	}
	s.logger.Debug("checkpoint flushed",
		logging.Int("wal_frames", logFrames),
		logging.Int("checkpointed_frames", checkpointed))
	return nil
}

// List summarizes every stored record, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT p.source_path, p.digest, p.run_id, p.created_at, p.updated_at,
               COUNT(w.idx),
               COALESCE(SUM(CASE WHEN w.kind = ? THEN 1 ELSE 0 END), 0)
        FROM progress p
        LEFT JOIN windows w ON w.source_path = p.source_path
        GROUP BY p.source_path
        ORDER BY p.updated_at DESC`,
		string(recognition.KindIdentified),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "list", "", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			summary          Summary
			created, updated string
		)
		if err := rows.Scan(&summary.Path, &summary.Digest, &summary.RunID, &created, &updated,
			&summary.Windows, &summary.Identified); err != nil {
			return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "list", "scan", err)
		}
		summary.CreatedAt, _ = parseTime(created)
		summary.UpdatedAt, _ = parseTime(updated)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "list", "", err)
	}
	return out, nil
}

func (s *Store) loadWindows(ctx context.Context, path string) ([]WindowRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT idx, start_ms, duration_ms, kind, artist, title, album, song_url,
               artwork_url, original_artist, original_title, reason, recorded_at
        FROM windows WHERE source_path = ? ORDER BY idx`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WindowRecord
	for rows.Next() {
		var (
			rec                 WindowRecord
			startMS, durationMS int64
			kind, recorded      string
			artist, title       sql.NullString
			album, songURL      sql.NullString
			artwork             sql.NullString
			origArtist          sql.NullString
			origTitle, reason   sql.NullString
		)
		if err := rows.Scan(&rec.Index, &startMS, &durationMS, &kind, &artist, &title, &album,
			&songURL, &artwork, &origArtist, &origTitle, &reason, &recorded); err != nil {
			return nil, err
		}
		rec.Start = time.Duration(startMS) * time.Millisecond
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt, _ = parseTime(recorded)
		rec.Outcome = recognition.Outcome{
			Kind:   recognition.Kind(kind),
			Reason: reason.String,
			Match: recognition.Match{
				Artist:         artist.String,
				Title:          title.String,
				Album:          album.String,
				SongURL:        songURL.String,
				ArtworkURL:     artwork.String,
				OriginalArtist: origArtist.String,
				OriginalTitle:  origTitle.String,
			},
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("database has schema version %d, expected %d (delete %s to reset progress)",
			version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, value)
}
