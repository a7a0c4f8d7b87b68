package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/fsuipc-bridge/pkg/logger"
	_ "modernc.org/sqlite"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

const (
	defaultRecentLimit = 50

	// fixed width so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// CommandRecord is one consumer write command as it was handled
type CommandRecord struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Address   int       `json:"address,omitempty"`
	Raw       int64     `json:"raw"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// CommandStorage journals consumer write commands
type CommandStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCommandStorage opens (or creates) the journal database at dbPath
func NewCommandStorage(dbPath string, log *logger.Logger) (*CommandStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing command journal", String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &CommandStorage{db: db, logger: storageLogger}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *CommandStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS command_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			client_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT,
			address INTEGER,
			raw INTEGER,
			ok BOOLEAN NOT NULL,
			error TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create command_log table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_command_log_created_at ON command_log(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}
	return nil
}

// Record stores one command and returns its id
func (s *CommandStorage) Record(ctx context.Context, record *CommandRecord) (int64, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO command_log (created_at, client_id, name, value, address, raw, ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CreatedAt.UTC().Format(timeLayout),
		record.ClientID,
		record.Name,
		record.Value,
		record.Address,
		record.Raw,
		record.OK,
		record.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert command: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id
	return id, nil
}

// Recent returns the newest commands first
func (s *CommandStorage) Recent(ctx context.Context, limit int) ([]*CommandRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, client_id, name, value, address, raw, ok, error
		FROM command_log
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	records := make([]*CommandRecord, 0)
	for rows.Next() {
		var record CommandRecord
		var createdAt string
		var value, errText sql.NullString
		var address, raw sql.NullInt64

		if err := rows.Scan(
			&record.ID,
			&createdAt,
			&record.ClientID,
			&record.Name,
			&value,
			&address,
			&raw,
			&record.OK,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}

		record.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		record.Value = value.String
		record.Address = int(address.Int64)
		record.Raw = raw.Int64
		record.Error = errText.String

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}

	return records, nil
}

// Prune deletes commands older than cutoff and returns how many were removed
func (s *CommandStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM command_log WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune commands: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned commands: %w", err)
	}
	if n > 0 {
		s.logger.Info("Pruned command journal", logger.Int64("removed", n))
	}
	return n, nil
}

// Close closes the database connection
func (s *CommandStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
