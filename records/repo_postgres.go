package records

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ Repo = (*PostgresRepo)(nil)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, user_id, kind, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, string(entry.Kind), []byte(entry.Payload), entry.CreatedAt)
	return errors.Wrap(err, "PostgresRepo.Create")
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, kind Kind, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, payload, created_at FROM records
		 WHERE user_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT $3`,
		userID, string(kind), limit)
	if err != nil {
		return nil, errors.Wrap(err, "PostgresRepo.ListByUser")
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		entry := &Entry{}
		var kindStr string
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &kindStr, &payload, &entry.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "PostgresRepo.ListByUser scan")
		}
		entry.Kind = Kind(kindStr)
		entry.Payload = payload
		out = append(out, entry)
	}
	return out, errors.Wrap(rows.Err(), "PostgresRepo.ListByUser rows")
}

func (r *PostgresRepo) Delete(ctx context.Context, userID string, kind Kind, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE user_id = $1 AND kind = $2 AND id = $3`,
		userID, string(kind), id)
	if err != nil {
		return errors.Wrap(err, "PostgresRepo.Delete")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
