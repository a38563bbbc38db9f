package resettoken

import (
	"database/sql"

	"github.com/pkg/errors"
)

var _ Repo = (*PostgresRepo)(nil)

// PostgresRepo stores reset tokens with a composite (identifier, token) key.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Replace(token *Token) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "PostgresRepo.Replace begin")
	}
	defer func() { _ = tx.Rollback() }()

	// A new request invalidates every prior outstanding token for the
	// identifier.
	if _, err := tx.Exec(`DELETE FROM reset_tokens WHERE identifier = $1`, token.Identifier); err != nil {
		return errors.Wrap(err, "PostgresRepo.Replace delete")
	}
	if _, err := tx.Exec(
		`INSERT INTO reset_tokens (identifier, token, expires_at) VALUES ($1, $2, $3)`,
		token.Identifier, token.Value, token.ExpiresAt); err != nil {
		return errors.Wrap(err, "PostgresRepo.Replace insert")
	}
	return errors.Wrap(tx.Commit(), "PostgresRepo.Replace commit")
}

func (r *PostgresRepo) Get(identifier, value string) (*Token, error) {
	token := &Token{}
	err := r.db.QueryRow(
		`SELECT identifier, token, expires_at FROM reset_tokens WHERE identifier = $1 AND token = $2`,
		identifier, value).Scan(&token.Identifier, &token.Value, &token.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errTokenNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "PostgresRepo.Get")
	}
	return token, nil
}

func (r *PostgresRepo) Delete(identifier, value string) error {
	_, err := r.db.Exec(
		`DELETE FROM reset_tokens WHERE identifier = $1 AND token = $2`, identifier, value)
	return errors.Wrap(err, "PostgresRepo.Delete")
}
