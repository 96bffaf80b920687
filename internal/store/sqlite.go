package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ashureev/quotechat/internal/domain"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps history reads from blocking message inserts.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// quote_requests and quotes belong to the CRUD layer; they are created here
// only so a fresh database can answer IsParticipant.
func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		lender_id TEXT,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		is_automated INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, id);

	CREATE TABLE IF NOT EXISTS quote_requests (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quotes (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		lender_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quotes_request ON quotes(request_id, lender_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// InsertMessage durably stores a chat message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}

	query := `
	INSERT INTO messages (id, conversation_id, sender_id, lender_id, content, created_at, is_automated)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var lenderID interface{}
	if msg.LenderID != "" {
		lenderID = msg.LenderID
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, lenderID,
		msg.Content, msg.CreatedAt.UnixNano(), msg.IsAutomated,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the latest messages of a conversation in creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, lender_id, content, created_at, is_automated
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, conversationID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var lenderID sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &lenderID,
			&msg.Content, &createdAt, &msg.IsAutomated,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.LenderID = lenderID.String
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// IsParticipant reports whether participantID may take part in the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, conversationID, participantID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM quote_requests WHERE id = ? AND buyer_id = ?
			UNION ALL
			SELECT 1 FROM quotes WHERE request_id = ? AND lender_id = ?
		)`

	var ok bool
	err := s.db.QueryRowContext(ctx, query,
		conversationID, participantID, conversationID, participantID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// CreateQuoteRequest records a quote request owned by buyerID. The CRUD
// layer normally owns these rows; it is exposed for seeding and tests.
func (s *SQLiteStore) CreateQuoteRequest(ctx context.Context, requestID, buyerID string) error {
	query := `INSERT INTO quote_requests (id, buyer_id, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, requestID, buyerID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert quote request: %w", err)
	}
	return nil
}

// CreateQuote records a lender quote on a request.
func (s *SQLiteStore) CreateQuote(ctx context.Context, quoteID, requestID, lenderID string) error {
	query := `INSERT INTO quotes (id, request_id, lender_id, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, quoteID, requestID, lenderID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}
