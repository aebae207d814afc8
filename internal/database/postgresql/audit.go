package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"uploader/internal/upload"
)

const schema = `
CREATE TABLE IF NOT EXISTS upload_audit (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	user_id     TEXT        NOT NULL DEFAULT '',
	file_name   TEXT        NOT NULL,
	object_key  TEXT        NOT NULL,
	bucket      TEXT        NOT NULL,
	size_bytes  BIGINT      NOT NULL,
	status      TEXT        NOT NULL,
	reason      TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS upload_audit_session_idx ON upload_audit (session_id, created_at DESC);
`

const insertEntry = `INSERT INTO upload_audit
	(session_id, user_id, file_name, object_key, bucket, size_bytes, status, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectBySession = `SELECT session_id, user_id, file_name, object_key, bucket, size_bytes, status, reason, created_at
	FROM upload_audit WHERE session_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

// Entry is one settled upload attempt.
type Entry struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	FileName  string    `json:"file"`
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket"`
	Size      int64     `json:"size"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// notifyTimeout bounds one insert made while a batch is uploading.
const notifyTimeout = 2 * time.Second

// AuditLog is an append-only ledger of upload outcomes.
type AuditLog struct {
	db      DBTX
	logger  *slog.Logger
	timeout time.Duration
}

func NewAuditLog(db DBTX, logger *slog.Logger) *AuditLog {
	return &AuditLog{db: db, logger: logger, timeout: notifyTimeout}
}

func (a *AuditLog) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create upload_audit: %w", err)
	}
	return nil
}

func (a *AuditLog) Record(ctx context.Context, e Entry) error {
	_, err := a.db.Exec(ctx, insertEntry,
		e.SessionID, e.UserID, e.FileName, e.Key, e.Bucket, e.Size, e.Status, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload_audit: %w", err)
	}
	return nil
}

// History lists the latest entries of a session, newest first.
func (a *AuditLog) History(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	rows, err := a.db.Query(ctx, selectBySession, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload_audit: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.SessionID, &e.UserID, &e.FileName, &e.Key, &e.Bucket, &e.Size, &e.Status, &e.Reason, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan upload_audit: %w", err)
	}
	return entries, nil
}

// ForSession returns a notifier that records every settled upload of a session.
// Insert failures and timeouts are logged, never surfaced to the uploader.
func (a *AuditLog) ForSession(sessionID, userID string) upload.Notifier {
	return upload.NotifierFunc(func(ctx context.Context, n upload.Notification) {
		if n.Key == "" || n.Kind == upload.KindLoading {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		err := a.Record(ctx, Entry{
			SessionID: sessionID,
			UserID:    userID,
			FileName:  n.File,
			Key:       n.Key,
			Bucket:    n.Bucket,
			Size:      n.Size,
			Status:    string(n.Kind),
			Reason:    n.Reason,
			CreatedAt: n.At,
		})
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to record upload", "key", n.Key, "error", err)
		}
	})
}
