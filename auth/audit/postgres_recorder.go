package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ Recorder = (*PostgresRecorder)(nil)

// PostgresRecorder appends attempts to the login_attempts table. Rows are
// never updated or deleted here.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, attempt *Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO login_attempts (id, user_id, identifier, ip, user_agent, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`
	_, err := r.db.ExecContext(ctx, query, attempt.ID, attempt.UserID,
		attempt.Identifier, attempt.IP, attempt.UserAgent, attempt.Success,
		attempt.Reason, attempt.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "PostgresRecorder.Record")
	}
	return nil
}
