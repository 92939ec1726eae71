package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finanzas/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")

	// ErrEmailTaken accompanies ErrDuplicate when the users.email
	// constraint is the one that failed.
	ErrEmailTaken = errors.New("email already registered")
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// DSN turns a database file path into a modernc.org/sqlite data source with
// foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("stored date %q: %w", s, err)
	}
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// CreateUser inserts u and returns it with ID and CreatedAt set. A taken
// username or email yields ErrDuplicate; a taken email also matches
// ErrEmailTaken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, first_name, last_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, created)
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), "users.email") {
			return core.User{}, fmt.Errorf("create user %q: %w: %w", u.Username, ErrDuplicate, ErrEmailTaken)
		}
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, ErrDuplicate)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	u.CreatedAt = parseTime(created)
	return u, nil
}

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// UserByUsername matches the username case-insensitively.
func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE`, username))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, r.timestamp(), expiresAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionUser returns the owner of an unexpired session, or ErrNotFound.
func (r *SQLiteRepository) SessionUser(ctx context.Context, token string, now time.Time) (core.User, error) {
	var expires string
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.created_at, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`, token)

	var (
		u       core.User
		created string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session: %w", err)
	}
	if !parseTime(expires).After(now) {
		return core.User{}, ErrNotFound
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now and returns
// how many were removed.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
