package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/glimmerchat/engine/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"sessions",
		"messages",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	var procname sql.NullString
	err := db.QueryRowContext(ctx, "SELECT proname FROM pg_proc WHERE proname = $1", "save_message_with_touch").Scan(&procname)
	if err == sql.ErrNoRows {
		return fmt.Errorf("database schema missing: save_message_with_touch function not found (run infra/migrations/001_init.sql)")
	}
	return err
}

func (p *PostgresStore) CreateSession(ctx context.Context, session store.Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		session.ID,
		nullString(session.UserID),
		nullString(session.Title),
		session.CreatedAt,
		session.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	const query = `
		SELECT s.id, s.user_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.id, s.user_id, s.title, s.created_at, s.updated_at
	`
	row := p.db.QueryRowContext(ctx, query, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (p *PostgresStore) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	const query = `
		SELECT s.id, s.user_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON m.session_id = s.id
		WHERE $1 = '' OR s.user_id = $1
		GROUP BY s.id, s.user_id, s.title, s.created_at, s.updated_at
		ORDER BY s.updated_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) UpdateSessionTitle(ctx context.Context, sessionID string, userID string, title string) error {
	const query = `
		UPDATE sessions
		SET title = $1, updated_at = NOW()
		WHERE id = $2 AND ($3 = '' OR user_id IS NULL OR user_id = $3)
	`
	result, err := p.db.ExecContext(ctx, query, title, sessionID, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) CountSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE session_id = $1", sessionID).Scan(&count)
	return count, err
}

// SaveMessageWithTouch goes through the save_message_with_touch database
// function, which inserts the row and bumps sessions.updated_at in one
// transaction. The function is a no-op when the message id already exists.
func (p *PostgresStore) SaveMessageWithTouch(ctx context.Context, msg store.Message) error {
	toolsBytes, err := encodeTools(msg.Tools)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(
		ctx,
		"SELECT save_message_with_touch($1, $2, $3, $4, $5, $6, $7)",
		msg.ID,
		msg.SessionID,
		nullString(msg.UserID),
		msg.Role,
		msg.Content,
		msg.CreatedAt,
		toolsBytes,
	)
	return err
}

func (p *PostgresStore) InsertMessage(ctx context.Context, msg store.Message) error {
	toolsBytes, err := encodeTools(msg.Tools)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO messages (id, session_id, user_id, role, content, created_at, tools)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		msg.ID,
		msg.SessionID,
		nullString(msg.UserID),
		msg.Role,
		msg.Content,
		msg.CreatedAt,
		toolsBytes,
	)
	return err
}

func (p *PostgresStore) GetMessage(ctx context.Context, messageID string) (*store.Message, error) {
	const query = `
		SELECT id, session_id, user_id, role, content, created_at, tools
		FROM messages
		WHERE id = $1
	`
	msg, err := scanMessage(p.db.QueryRowContext(ctx, query, messageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	query := `
		SELECT id, session_id, user_id, role, content, created_at, tools
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		// Most recent window, re-ordered oldest first for prompt assembly.
		query = `
			SELECT id, session_id, user_id, role, content, created_at, tools
			FROM (
				SELECT id, session_id, user_id, role, content, created_at, tools
				FROM messages
				WHERE session_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC
		`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.Session, error) {
	var session store.Session
	var userID sql.NullString
	var title sql.NullString
	var createdAt time.Time
	var updatedAt time.Time
	if err := row.Scan(&session.ID, &userID, &title, &createdAt, &updatedAt, &session.MessageCount); err != nil {
		return nil, err
	}
	if userID.Valid {
		session.UserID = userID.String
	}
	if title.Valid {
		session.Title = title.String
	}
	session.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	session.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &session, nil
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var userID sql.NullString
	var createdAt time.Time
	var toolsBytes []byte
	if err := row.Scan(&msg.ID, &msg.SessionID, &userID, &msg.Role, &msg.Content, &createdAt, &toolsBytes); err != nil {
		return nil, err
	}
	if userID.Valid {
		msg.UserID = userID.String
	}
	msg.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	if len(toolsBytes) > 0 {
		tools := store.ToolsUsed{}
		if err := json.Unmarshal(toolsBytes, &tools); err != nil {
			return nil, err
		}
		if !tools.Empty() {
			msg.Tools = &tools
		}
	}
	return &msg, nil
}

func encodeTools(tools *store.ToolsUsed) ([]byte, error) {
	if tools.Empty() {
		return nil, nil
	}
	return json.Marshal(tools)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
