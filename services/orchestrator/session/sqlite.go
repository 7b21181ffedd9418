package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"conference/services/orchestrator/models"
)

// Archive is a SQLite-backed Store for deployments that want conversations
// kept past the Redis TTL.
type Archive struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ Store = (*Archive)(nil)

func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db, path: path, now: time.Now}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		left_ai_model TEXT NOT NULL,
		right_ai_model TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		status TEXT NOT NULL,
		mode TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) Create(ctx context.Context, conv *models.Conversation) error {
	if err := validate(conv); err != nil {
		return err
	}
	prepare(conv, a.now().UTC())

	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, left_ai_model, right_ai_model, messages_json, status, mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.Title, conv.LeftModel, conv.RightModel, string(messagesJSON),
		string(conv.Status), string(conv.Mode), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (a *Archive) Update(ctx context.Context, id string, update models.ConversationUpdate) error {
	if id == "" {
		return ErrInvalidID
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	conv, err := scanConversation(tx.QueryRowContext(ctx, selectConversation+` WHERE id = ?`, id), id)
	if err != nil {
		return err
	}
	conv.Apply(update, a.now().UTC())

	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET left_ai_model = ?, right_ai_model = ?, messages_json = ?, status = ?, mode = ?, updated_at = ?
		WHERE id = ?
	`, conv.LeftModel, conv.RightModel, string(messagesJSON), string(conv.Status), string(conv.Mode), conv.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return tx.Commit()
}

func (a *Archive) Get(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return scanConversation(a.db.QueryRowContext(ctx, selectConversation+` WHERE id = ?`, id), id)
}

func (a *Archive) List(ctx context.Context, limit int) ([]*models.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, selectConversation+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

const selectConversation = `
	SELECT id, title, left_ai_model, right_ai_model, messages_json, status, mode, created_at, updated_at
	FROM conversations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner, id string) (*models.Conversation, error) {
	var conv models.Conversation
	var messagesJSON, status, mode string
	err := row.Scan(&conv.ID, &conv.Title, &conv.LeftModel, &conv.RightModel, &messagesJSON,
		&status, &mode, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	conv.Status = models.Status(status)
	conv.Mode = models.ConversationMode(mode)
	return &conv, nil
}
