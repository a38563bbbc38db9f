package postgresuserrepo

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mindwell-app/mindwell-server/users"
	"github.com/pkg/errors"
)

var _ users.UserRepo = (*PostgresUserRepo)(nil)

// PostgresUserRepo persists credential records in Postgres. Counter and
// lockout updates run as single-statement read-modify-writes so concurrent
// login attempts cannot lose updates.
type PostgresUserRepo struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, phone, password_hash, display_name,
	failed_login_attempts, locked_until, email_verified_at, phone_verified_at,
	created_at, last_login_at`

func (r *PostgresUserRepo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO users (id, email, phone, password_hash, display_name,
			failed_login_attempts, locked_until, email_verified_at,
			phone_verified_at, created_at, last_login_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			password_hash = EXCLUDED.password_hash,
			display_name = EXCLUDED.display_name,
			email_verified_at = EXCLUDED.email_verified_at,
			phone_verified_at = EXCLUDED.phone_verified_at`
	_, err := r.db.Exec(query, user.ID, user.Email, user.Phone, user.PasswordHash,
		user.DisplayName, user.FailedLoginAttempts, user.LockedUntil,
		user.EmailVerifiedAt, user.PhoneVerifiedAt, user.CreatedAt, user.LastLoginAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return users.ErrDuplicateIdentifier
		}
		return errors.Wrap(err, "PostgresUserRepo.Upsert")
	}
	return nil
}

func (r *PostgresUserRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "PostgresUserRepo.Delete")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) GetByID(id string) (*users.User, error) {
	return r.getBy(`id = $1`, id)
}

func (r *PostgresUserRepo) GetByEmail(email string) (*users.User, error) {
	return r.getBy(`email = $1`, email)
}

func (r *PostgresUserRepo) GetByPhone(phone string) (*users.User, error) {
	return r.getBy(`phone = $1`, phone)
}

func (r *PostgresUserRepo) getBy(where string, arg any) (*users.User, error) {
	user := &users.User{}
	var email, phone sql.NullString
	err := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&user.ID, &email, &phone, &user.PasswordHash, &user.DisplayName,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.EmailVerifiedAt,
		&user.PhoneVerifiedAt, &user.CreatedAt, &user.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "PostgresUserRepo.getBy")
	}
	user.Email = email.String
	user.Phone = phone.String
	return user, nil
}

func (r *PostgresUserRepo) RecordLoginFailure(id string, lockThreshold int, lockFor time.Duration) (int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN now() + make_interval(secs => $3)
				ELSE locked_until
			END
		WHERE id = $1
		RETURNING failed_login_attempts`
	var attempts int
	err := r.db.QueryRow(query, id, lockThreshold, lockFor.Seconds()).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, users.ErrNotFound
	}
	if err != nil {
		return 0, errors.Wrap(err, "PostgresUserRepo.RecordLoginFailure")
	}
	return attempts, nil
}

func (r *PostgresUserRepo) RecordLoginSuccess(id string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, last_login_at = now()
		WHERE id = $1`
	res, err := r.db.Exec(query, id)
	if err != nil {
		return errors.Wrap(err, "PostgresUserRepo.RecordLoginSuccess")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetPassword(id string, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1`
	res, err := r.db.Exec(query, id, passwordHash)
	if err != nil {
		return errors.Wrap(err, "PostgresUserRepo.SetPassword")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return users.ErrNotFound
	}
	return nil
}
