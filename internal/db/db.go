// Package db holds the hand-written query layer over Postgres. kubarr has
// no per-tenant schemas, so every query runs against the public schema
// using a single shared pool.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps a pool and exposes the kubarr schema's read/write operations.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// User is a row from the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	IsApproved   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a row from the sessions table.
type Session struct {
	ID             string
	UserID         uuid.UUID
	UserAgent      string
	IPAddress      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	IsRevoked      bool
}

var ErrNotFound = pgx.ErrNoRows

// GetUserByEmail looks up a user by exact, case-sensitive email match,
// whatever its active/approved state; callers check IsActive/IsApproved.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, is_active, is_approved, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUser loads a user by id.
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, is_active, is_approved, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser auto-provisions a trust-header user with a random (never
// exposed) bcrypt password hash, active and approved immediately.
func (q *Queries) CreateUser(ctx context.Context, email, displayName, passwordHash string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, is_active, is_approved, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, true, now(), now())
		 RETURNING id, email, display_name, password_hash, is_active, is_approved, created_at, updated_at`,
		uuid.New(), email, displayName, passwordHash,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// UsernameTaken reports whether display_name is already in use, used when
// deriving a unique username for auto-provisioned users.
func (q *Queries) UsernameTaken(ctx context.Context, displayName string) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE display_name = $1)`, displayName,
	).Scan(&exists)
	return exists, err
}

// IsAdmin reports whether the user holds the admin role, which short-
// circuits every permission and app-access check.
func (q *Queries) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := q.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_roles ur JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1 AND r.name = 'admin'
		 )`, userID,
	).Scan(&exists)
	return exists, err
}

// Permissions returns the deduplicated, sorted set of literal permission
// strings and app.<name> strings granted across all of a user's roles.
func (q *Queries) Permissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT rp.permission FROM user_roles ur
		 JOIN role_permissions rp ON rp.role_id = ur.role_id
		 WHERE ur.user_id = $1
		 UNION
		 SELECT 'app.' || rap.app_name FROM user_roles ur
		 JOIN role_app_permissions rap ON rap.role_id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY 1`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreateSession inserts a new session row with the given TTL.
func (q *Queries) CreateSession(ctx context.Context, userID uuid.UUID, userAgent, ipAddress string, ttl time.Duration) (Session, error) {
	var s Session
	now := time.Now().UTC()
	err := q.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, user_agent, ip_address, created_at, expires_at, last_accessed_at, is_revoked)
		 VALUES ($1, $2, $3, $4, $5, $6, $5, false)
		 RETURNING id, user_id, user_agent, ip_address, created_at, expires_at, last_accessed_at, is_revoked`,
		uuid.New().String(), userID, userAgent, ipAddress, now, now.Add(ttl),
	).Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastAccessedAt, &s.IsRevoked)
	return s, err
}

// GetSession loads a session by id regardless of its expiry/revoked state;
// callers must check ExpiresAt/IsRevoked themselves.
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := q.pool.QueryRow(ctx,
		`SELECT id, user_id, user_agent, ip_address, created_at, expires_at, last_accessed_at, is_revoked
		 FROM sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastAccessedAt, &s.IsRevoked)
	return s, err
}

// TouchSession updates last_accessed_at; called fire-and-forget from the
// auth gate so it never blocks the request it's authenticating.
func (q *Queries) TouchSession(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `UPDATE sessions SET last_accessed_at = now() WHERE id = $1`, id)
	return err
}

// RevokeSession marks a session as revoked (logout).
func (q *Queries) RevokeSession(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `UPDATE sessions SET is_revoked = true WHERE id = $1`, id)
	return err
}

// SettingGet/SettingSetIfAbsent back the signing-key persistence table: kubarr
// generates an RSA keypair on first boot and reuses it across restarts so
// existing sessions stay valid.
func (q *Queries) SettingGet(ctx context.Context, name string) (string, error) {
	var value string
	err := q.pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE name = $1`, name).Scan(&value)
	return value, err
}

func (q *Queries) SettingSetIfAbsent(ctx context.Context, name, value string) (string, error) {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO system_settings (name, value, created_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO NOTHING`, name, value)
	if err != nil {
		return "", fmt.Errorf("inserting setting %s: %w", name, err)
	}
	return q.SettingGet(ctx, name)
}

// BootstrapComponent is a row from bootstrap_status.
type BootstrapComponent struct {
	ID          int64
	Component   string
	DisplayName string
	Status      string
	Message     string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

func (q *Queries) UpsertBootstrapComponent(ctx context.Context, component, displayName string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO bootstrap_status (component, display_name, status)
		 VALUES ($1, $2, 'pending')
		 ON CONFLICT (component) DO NOTHING`, component, displayName)
	return err
}

func (q *Queries) SetBootstrapStatus(ctx context.Context, component, status, message, errMsg string, started, completed bool) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE bootstrap_status SET status = $2, message = $3, error = $4,
		 started_at = CASE WHEN $5 THEN now() ELSE started_at END,
		 completed_at = CASE WHEN $6 THEN now() ELSE completed_at END
		 WHERE component = $1`, component, status, message, errMsg, started, completed)
	return err
}

func (q *Queries) ListBootstrapComponents(ctx context.Context) ([]BootstrapComponent, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, component, display_name, status, message, started_at, completed_at, error
		 FROM bootstrap_status ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BootstrapComponent
	for rows.Next() {
		var c BootstrapComponent
		if err := rows.Scan(&c.ID, &c.Component, &c.DisplayName, &c.Status, &c.Message, &c.StartedAt, &c.CompletedAt, &c.Error); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
