package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vimathss/otto-backend/internal/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultMaxTurns caps the number of turns kept per conversation before the
// oldest are evicted.
const DefaultMaxTurns = 500

// SQLiteStore implements Store on an embedded SQLite database. The single
// writer connection serializes concurrent appends to the same conversation,
// which keeps read-modify-write of turn_count safe without optimistic
// version checks.
type SQLiteStore struct {
	db        *sql.DB
	maxTurns  int
	collector *metrics.Collector
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) the conversation database in dataDir and runs
// pending migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests). maxTurns <= 0 selects DefaultMaxTurns; collector may be
// nil.
func Open(dataDir string, maxTurns int, collector *metrics.Collector) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "conversations.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	s := &SQLiteStore{db: db, maxTurns: maxTurns, collector: collector}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(name string) (int, error) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, fmt.Errorf("malformed migration filename: %s", name)
	}
	version, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("malformed migration version in %s: %w", name, err)
	}
	return version, nil
}

// Create starts a new conversation with a collision-resistant id.
func (s *SQLiteStore) Create(ctx context.Context, userID, title, convType string) (string, error) {
	now := time.Now().UTC()
	if title == "" {
		title = "Conversation " + now.Format("2006-01-02 15:04")
	}
	if convType == "" {
		convType = "chat"
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, type, created_at, updated_at, turn_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		id, userID, title, convType, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	slog.Info("conversation created", "conversation_id", id, "user_id", userID)
	return id, nil
}

// GetMetadata returns conversation metadata or ErrConversationNotFound.
func (s *SQLiteStore) GetMetadata(ctx context.Context, conversationID, userID string) (*Metadata, error) {
	query := `SELECT id, user_id, title, type, created_at, updated_at, turn_count
		FROM conversations WHERE id = ?`
	args := []any{conversationID}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	var meta Metadata
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&meta.ConversationID, &meta.UserID, &meta.Title, &meta.Type,
		&createdAt, &updatedAt, &meta.TurnCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading conversation: %w", err)
	}

	meta.CreatedAt = parseTime(createdAt)
	meta.UpdatedAt = parseTime(updatedAt)
	return &meta, nil
}

// AppendTurn appends one turn in a single transaction: insert, bump
// turn_count and updated_at, evict oldest turns above the cap.
func (s *SQLiteStore) AppendTurn(ctx context.Context, conversationID string, turn Turn) error {
	if s.collector != nil {
		start := time.Now()
		defer func() { s.collector.RecordTiming(metrics.OpStoreAppend, time.Since(start)) }()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE id = ?", conversationID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	metaJSON, err := json.Marshal(turn.Metadata)
	if err != nil {
		return fmt.Errorf("encoding turn metadata: %w", err)
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (conversation_id, created_at, user_message, assistant_response, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		conversationID, ts.Format(time.RFC3339Nano), turn.UserMessage, turn.AssistantResponse, string(metaJSON),
	); err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	// Evict oldest turns above the cap. Insertion order (rowid) is
	// chronological within a conversation.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM turns WHERE conversation_id = ? AND id NOT IN (
			SELECT id FROM turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		)`, conversationID, conversationID, s.maxTurns,
	); err != nil {
		return fmt.Errorf("evicting old turns: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			turn_count = (SELECT COUNT(*) FROM turns WHERE conversation_id = ?),
			updated_at = ?
		WHERE id = ?`,
		conversationID, time.Now().UTC().Format(time.RFC3339Nano), conversationID,
	); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	return tx.Commit()
}

// GetHistory returns up to maxTurns most recent turns, oldest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, conversationID, userID string, maxTurns int) ([]Turn, error) {
	if userID != "" {
		if _, err := s.GetMetadata(ctx, conversationID, userID); err != nil {
			return nil, err
		}
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, user_message, assistant_response, metadata FROM (
			SELECT id, created_at, user_message, assistant_response, metadata
			FROM turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		conversationID, maxTurns,
	)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var createdAt, metaJSON string
		if err := rows.Scan(&createdAt, &turn.UserMessage, &turn.AssistantResponse, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Timestamp = parseTime(createdAt)
		if err := json.Unmarshal([]byte(metaJSON), &turn.Metadata); err != nil {
			// A malformed metadata blob should not lose the turn.
			slog.Warn("malformed turn metadata", "conversation_id", conversationID, "error", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string, limit int, convType string) ([]Metadata, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, user_id, title, type, created_at, updated_at, turn_count
		FROM conversations WHERE user_id = ?`
	args := []any{userID}
	if convType != "" {
		query += " AND type = ?"
		args = append(args, convType)
	}
	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Metadata
	for rows.Next() {
		var meta Metadata
		var createdAt, updatedAt string
		if err := rows.Scan(&meta.ConversationID, &meta.UserID, &meta.Title, &meta.Type,
			&createdAt, &updatedAt, &meta.TurnCount); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		meta.CreatedAt = parseTime(createdAt)
		meta.UpdatedAt = parseTime(updatedAt)
		conversations = append(conversations, meta)
	}
	return conversations, rows.Err()
}

// FindByDate returns the user's earliest conversation created on the given
// day. Accepts "YYYY-MM-DD" and "DD/MM/YYYY".
func (s *SQLiteStore) FindByDate(ctx context.Context, userID, date string) (string, error) {
	normalized, err := normalizeDate(date)
	if err != nil {
		return "", err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE user_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC LIMIT 1`,
		userID, normalized, nextDay(normalized),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no conversation on %s", ErrConversationNotFound, normalized)
	}
	if err != nil {
		return "", fmt.Errorf("finding conversation by date: %w", err)
	}
	return id, nil
}

// Delete removes a conversation and its turns.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID, userID string) error {
	query := "DELETE FROM conversations WHERE id = ?"
	args := []any{conversationID}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return nil
}

// UpdateTitle renames a conversation.
func (s *SQLiteStore) UpdateTitle(ctx context.Context, conversationID, userID, title string) error {
	query := "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?"
	args := []any{title, time.Now().UTC().Format(time.RFC3339Nano), conversationID}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return nil
}

func normalizeDate(date string) (string, error) {
	if strings.Contains(date, "/") {
		parts := strings.Split(date, "/")
		if len(parts) != 3 {
			return "", fmt.Errorf("malformed date %q", date)
		}
		day, month, year := parts[0], parts[1], parts[2]
		if len(day) == 1 {
			day = "0" + day
		}
		if len(month) == 1 {
			month = "0" + month
		}
		date = year + "-" + month + "-" + day
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", fmt.Errorf("malformed date %q: %w", date, err)
	}
	return date, nil
}

func nextDay(date string) string {
	day, _ := time.Parse("2006-01-02", date)
	return day.AddDate(0, 0, 1).Format("2006-01-02")
}

// parseTime converts a stored timestamp, tolerating malformed values by
// returning the zero time instead of failing the read.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
