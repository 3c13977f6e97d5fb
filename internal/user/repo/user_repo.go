package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/user/entity"
	"github.com/AlessandraU03/stylepin-api/pkg/database"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already in use")
	ErrUsernameTaken = errors.New("username already in use")
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username VARCHAR(30) NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  full_name VARCHAR(100) NOT NULL,
  bio TEXT,
  avatar_url TEXT,
  gender TEXT NOT NULL DEFAULT 'prefer_not_to_say',
  preferred_styles TEXT[] NOT NULL DEFAULT '{}',
  is_verified BOOLEAN NOT NULL DEFAULT false,
  is_active BOOLEAN NOT NULL DEFAULT true,
  role TEXT NOT NULL DEFAULT 'user',
  login_attempts INT NOT NULL DEFAULT 0 CHECK (login_attempts >= 0),
  locked_until TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  last_login TIMESTAMPTZ,
  CONSTRAINT users_username_key UNIQUE (username),
  CONSTRAINT users_email_key UNIQUE (email)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, username, email, password_hash, full_name, bio, avatar_url, gender,
	preferred_styles, is_verified, is_active, role, login_attempts, locked_until,
	created_at, updated_at, last_login`

type userRow struct {
	ID              string         `db:"id"`
	Username        string         `db:"username"`
	Email           string         `db:"email"`
	PasswordHash    string         `db:"password_hash"`
	FullName        string         `db:"full_name"`
	Bio             *string        `db:"bio"`
	AvatarURL       *string        `db:"avatar_url"`
	Gender          string         `db:"gender"`
	PreferredStyles pq.StringArray `db:"preferred_styles"`
	IsVerified      bool           `db:"is_verified"`
	IsActive        bool           `db:"is_active"`
	Role            string         `db:"role"`
	LoginAttempts   int            `db:"login_attempts"`
	LockedUntil     *time.Time     `db:"locked_until"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	LastLogin       *time.Time     `db:"last_login"`
}

func (row *userRow) toEntity() *entity.User {
	return &entity.User{
		ID:              row.ID,
		Username:        row.Username,
		Email:           row.Email,
		PasswordHash:    row.PasswordHash,
		FullName:        row.FullName,
		Bio:             row.Bio,
		AvatarURL:       row.AvatarURL,
		Gender:          entity.Gender(row.Gender),
		PreferredStyles: []string(row.PreferredStyles),
		IsVerified:      row.IsVerified,
		IsActive:        row.IsActive,
		Role:            auth.Role(row.Role),
		LoginAttempts:   row.LoginAttempts,
		LockedUntil:     utc(row.LockedUntil),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
		LastLogin:       utc(row.LastLogin),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// Create inserts a new account. Duplicate keys surface as ErrEmailTaken or
// ErrUsernameTaken.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, username, email, password_hash, full_name, bio, avatar_url, gender,
		preferred_styles, is_verified, is_active, role, login_attempts, locked_until, created_at, updated_at, last_login)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	styles := pq.StringArray(u.PreferredStyles)
	if styles == nil {
		styles = pq.StringArray{}
	}
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Bio, u.AvatarURL, string(u.Gender),
		styles, u.IsVerified, u.IsActive, string(u.Role), u.LoginAttempts, u.LockedUntil,
		u.CreatedAt, u.UpdatedAt, u.LastLogin,
	)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			switch constraint {
			case emailConstraint:
				return ErrEmailTaken
			case usernameConstraint:
				return ErrUsernameTaken
			}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return row.toEntity(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, "id=$1", id)
}

// GetByEmail matches on the stored lowercase email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, "email=$1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, "username=$1", strings.TrimSpace(username))
}

// GetByIdentity treats identities containing '@' as emails and everything
// else as usernames.
func (r *UserRepo) GetByIdentity(ctx context.Context, identity string) (*entity.User, error) {
	if strings.Contains(identity, "@") {
		return r.GetByEmail(ctx, identity)
	}
	return r.GetByUsername(ctx, identity)
}

func (r *UserRepo) exists(ctx context.Context, where string, arg any) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM users WHERE `+where+`)`, arg); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return ok, nil
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email=$1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username=$1", strings.TrimSpace(username))
}

// Update writes the editable profile columns.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	const q = `UPDATE users SET full_name=$2, bio=$3, avatar_url=$4, gender=$5, preferred_styles=$6, updated_at=$7
		WHERE id=$1`
	styles := pq.StringArray(u.PreferredStyles)
	if styles == nil {
		styles = pq.StringArray{}
	}
	res, err := r.db.ExecContext(ctx, q, u.ID, u.FullName, u.Bio, u.AvatarURL, string(u.Gender), styles, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

// UpdateLoginAttempts overwrites the security state, used on success and on
// admin unlock.
func (r *UserRepo) UpdateLoginAttempts(ctx context.Context, id string, attempts int, lockedUntil *time.Time, at time.Time) error {
	const q = `UPDATE users SET login_attempts=$2, locked_until=$3, updated_at=$4 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, attempts, lockedUntil, at)
	if err != nil {
		return fmt.Errorf("update login attempts: %w", err)
	}
	return expectOne(res)
}

// IncrementLoginAttempts bumps the failure counter in one statement and sets
// locked_until when the new count reaches threshold.
func (r *UserRepo) IncrementLoginAttempts(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (int, *time.Time, error) {
	const q = `UPDATE users SET login_attempts = login_attempts + 1,
		locked_until = CASE WHEN login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		updated_at = $4
		WHERE id=$1 RETURNING login_attempts, locked_until`
	var out struct {
		Attempts    int        `db:"login_attempts"`
		LockedUntil *time.Time `db:"locked_until"`
	}
	if err := r.db.GetContext(ctx, &out, q, id, threshold, lockUntil, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("increment login attempts: %w", err)
	}
	return out.Attempts, utc(out.LockedUntil), nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE users SET last_login=$2, updated_at=$2 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return expectOne(res)
}

// RecordLogin resets the failure state and stamps last_login in a single
// statement, so a successful login commits all or nothing.
func (r *UserRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE users SET login_attempts=0, locked_until=NULL, last_login=$2, updated_at=$2 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return expectOne(res)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=$3 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, hash, at)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res)
}

// SetActive toggles soft deactivation.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	const q = `UPDATE users SET is_active=$2, updated_at=$3 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, active, at)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
