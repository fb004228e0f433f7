package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-commit-roaster/internal/domain"
	"github.com/arturoeanton/go-commit-roaster/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// InitSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		`CREATE TABLE IF NOT EXISTS users (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email       TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			avatar_url  TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL DEFAULT 'user',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tracked_repos (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			repo_name      TEXT NOT NULL UNIQUE,
			user_id        TEXT NOT NULL,
			timer_minutes  INT NOT NULL DEFAULT 60,
			post_twitter   BOOLEAN NOT NULL DEFAULT FALSE,
			post_linkedin  BOOLEAN NOT NULL DEFAULT FALSE,
			revert_on_fail BOOLEAN NOT NULL DEFAULT FALSE,
			yolo_mode      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS roasts (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			repo_name    TEXT NOT NULL,
			actor        TEXT NOT NULL DEFAULT '',
			commit_sha   TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			diff_excerpt TEXT NOT NULL DEFAULT '',
			reason       TEXT NOT NULL DEFAULT '',
			roast_text   TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'pending',
			posted       BOOLEAN NOT NULL DEFAULT FALSE,
			fixed        BOOLEAN NOT NULL DEFAULT FALSE,
			deadline     TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_roasts_due
			ON roasts (repo_name, deadline, posted, fixed)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id       TEXT NOT NULL,
			kind          TEXT NOT NULL,
			access_token  TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id     TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL,
			resource    TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			details     JSONB NOT NULL DEFAULT '{}',
			ip          TEXT NOT NULL DEFAULT '',
			user_agent  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// --- Roasts ---

const roastColumns = `id, repo_name, actor, commit_sha, message, diff_excerpt, reason,
	roast_text, status, posted, fixed, deadline, created_at, resolved_at`

func scanRoast(row interface{ Scan(...any) error }) (*domain.Roast, error) {
	var r domain.Roast
	err := row.Scan(
		&r.ID, &r.RepoName, &r.Actor, &r.CommitSHA, &r.Message, &r.DiffExcerpt,
		&r.Reason, &r.RoastText, &r.Status, &r.Posted, &r.Fixed,
		&r.Deadline, &r.CreatedAt, &r.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRoast inserts a new roast as a single atomic write.
func (s *PostgresStore) CreateRoast(ctx context.Context, r *domain.Roast) (*domain.Roast, error) {
	query := `INSERT INTO roasts (repo_name, actor, commit_sha, message, diff_excerpt, reason,
	                              roast_text, status, posted, fixed, deadline, resolved_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING ` + roastColumns

	row := s.db.QueryRowContext(ctx, query,
		r.RepoName, r.Actor, r.CommitSHA, r.Message, r.DiffExcerpt, r.Reason,
		r.RoastText, r.Status, r.Posted, r.Fixed, r.Deadline, r.ResolvedAt,
	)
	created, err := scanRoast(row)
	if err != nil {
		return nil, fmt.Errorf("create roast: %w", err)
	}
	return created, nil
}

// GetRoast returns a roast by id.
func (s *PostgresStore) GetRoast(ctx context.Context, id string) (*domain.Roast, error) {
	query := `SELECT ` + roastColumns + ` FROM roasts WHERE id = $1`

	r, err := scanRoast(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRoastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get roast: %w", err)
	}
	return r, nil
}

// ListDueRoasts returns roasts whose deadline has passed and that are neither
// posted nor fixed, oldest deadline first.
func (s *PostgresStore) ListDueRoasts(ctx context.Context, now time.Time) ([]domain.Roast, error) {
	query := `SELECT ` + roastColumns + `
	          FROM roasts
	          WHERE deadline IS NOT NULL AND deadline <= $1
	            AND posted = FALSE AND fixed = FALSE
	          ORDER BY deadline ASC`

	return s.queryRoasts(ctx, query, now)
}

// ListPendingRoastsByUser returns a user's unresolved, unexpired roasts,
// soonest deadline first.
func (s *PostgresStore) ListPendingRoastsByUser(ctx context.Context, userID string, now time.Time) ([]domain.Roast, error) {
	query := `SELECT r.id, r.repo_name, r.actor, r.commit_sha, r.message, r.diff_excerpt, r.reason,
	                 r.roast_text, r.status, r.posted, r.fixed, r.deadline, r.created_at, r.resolved_at
	          FROM roasts r
	          JOIN tracked_repos t ON t.repo_name = r.repo_name
	          WHERE t.user_id = $1
	            AND r.status = 'pending'
	            AND r.deadline IS NOT NULL AND r.deadline > $2
	          ORDER BY r.deadline ASC`

	return s.queryRoasts(ctx, query, userID, now)
}

func (s *PostgresStore) queryRoasts(ctx context.Context, query string, args ...any) ([]domain.Roast, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list roasts: %w", err)
	}
	defer rows.Close()

	var roasts []domain.Roast
	for rows.Next() {
		r, err := scanRoast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roast: %w", err)
		}
		roasts = append(roasts, *r)
	}
	return roasts, rows.Err()
}

// ClaimRoast atomically marks a roast as expired+posted. The WHERE clause is
// the entire at-most-once guarantee: a concurrent sweep that loses the race
// sees zero rows affected and reports false.
func (s *PostgresStore) ClaimRoast(ctx context.Context, id string) (bool, error) {
	query := `UPDATE roasts SET posted = TRUE, status = 'expired'
	          WHERE id = $1 AND posted = FALSE AND fixed = FALSE`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim roast: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim roast: %w", err)
	}
	return n == 1, nil
}

// ResolveRoast marks a pending roast as fixed. The conditional update
// serializes against a concurrent claim.
func (s *PostgresStore) ResolveRoast(ctx context.Context, id string, now time.Time) (*domain.Roast, error) {
	query := `UPDATE roasts SET status = 'resolved', fixed = TRUE, resolved_at = $2
	          WHERE id = $1 AND status = 'pending'
	          RETURNING ` + roastColumns

	r, err := scanRoast(s.db.QueryRowContext(ctx, query, id, now))
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish missing from already-terminal.
		if _, getErr := s.GetRoast(ctx, id); getErr != nil {
			return nil, port.ErrRoastNotFound
		}
		return nil, port.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("resolve roast: %w", err)
	}
	return r, nil
}

// --- Tracked repos ---

const trackedRepoColumns = `id, repo_name, user_id, timer_minutes, post_twitter,
	post_linkedin, revert_on_fail, yolo_mode, created_at, updated_at`

func scanTrackedRepo(row interface{ Scan(...any) error }) (*domain.TrackedRepo, error) {
	var t domain.TrackedRepo
	err := row.Scan(
		&t.ID, &t.RepoName, &t.UserID, &t.TimerMinutes, &t.PostTwitter,
		&t.PostLinkedIn, &t.RevertOnFail, &t.YoloMode, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTrackedRepo returns the supervision config for a repo name.
func (s *PostgresStore) GetTrackedRepo(ctx context.Context, repoName string) (*domain.TrackedRepo, error) {
	query := `SELECT ` + trackedRepoColumns + ` FROM tracked_repos WHERE repo_name = $1`

	t, err := scanTrackedRepo(s.db.QueryRowContext(ctx, query, repoName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotTracked
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked repo: %w", err)
	}
	return t, nil
}

// UpsertTrackedRepo creates or updates the config row keyed by repo name.
func (s *PostgresStore) UpsertTrackedRepo(ctx context.Context, r *domain.TrackedRepo) (*domain.TrackedRepo, error) {
	query := `INSERT INTO tracked_repos (repo_name, user_id, timer_minutes, post_twitter,
	                                     post_linkedin, revert_on_fail, yolo_mode)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (repo_name) DO UPDATE SET
	              timer_minutes  = EXCLUDED.timer_minutes,
	              post_twitter   = EXCLUDED.post_twitter,
	              post_linkedin  = EXCLUDED.post_linkedin,
	              revert_on_fail = EXCLUDED.revert_on_fail,
	              yolo_mode      = EXCLUDED.yolo_mode,
	              updated_at     = NOW()
	          RETURNING ` + trackedRepoColumns

	row := s.db.QueryRowContext(ctx, query,
		r.RepoName, r.UserID, r.TimerMinutes, r.PostTwitter,
		r.PostLinkedIn, r.RevertOnFail, r.YoloMode,
	)
	t, err := scanTrackedRepo(row)
	if err != nil {
		return nil, fmt.Errorf("upsert tracked repo: %w", err)
	}
	return t, nil
}

// ListTrackedReposByUser returns all repos a user supervises.
func (s *PostgresStore) ListTrackedReposByUser(ctx context.Context, userID string) ([]domain.TrackedRepo, error) {
	query := `SELECT ` + trackedRepoColumns + `
	          FROM tracked_repos WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tracked repos: %w", err)
	}
	defer rows.Close()

	var repos []domain.TrackedRepo
	for rows.Next() {
		t, err := scanTrackedRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked repo: %w", err)
		}
		repos = append(repos, *t)
	}
	return repos, rows.Err()
}

// DeleteTrackedRepo removes only the config row.
func (s *PostgresStore) DeleteTrackedRepo(ctx context.Context, repoName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracked_repos WHERE repo_name = $1`, repoName)
	if err != nil {
		return fmt.Errorf("delete tracked repo: %w", err)
	}
	return nil
}

// DeleteTrackedRepoCascade removes every roast for the repo and then the
// config row, in one transaction.
func (s *PostgresStore) DeleteTrackedRepoCascade(ctx context.Context, repoName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cascade delete: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roasts WHERE repo_name = $1`, repoName); err != nil {
		return fmt.Errorf("cascade delete roasts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_repos WHERE repo_name = $1`, repoName); err != nil {
		return fmt.Errorf("cascade delete tracked repo: %w", err)
	}
	return tx.Commit()
}

// --- Credentials ---

// Credential implements port.CredentialSource.
func (s *PostgresStore) Credential(ctx context.Context, userID, kind string) (string, string, error) {
	query := `SELECT access_token, refresh_token FROM credentials WHERE user_id = $1 AND kind = $2`

	var access, refresh string
	err := s.db.QueryRowContext(ctx, query, userID, kind).Scan(&access, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", port.ErrNoCredential
	}
	if err != nil {
		return "", "", fmt.Errorf("get credential: %w", err)
	}
	return access, refresh, nil
}

// UpdateCredential replaces the stored tokens for (user, kind).
func (s *PostgresStore) UpdateCredential(ctx context.Context, userID, kind, accessToken, refreshToken string) error {
	query := `INSERT INTO credentials (user_id, kind, access_token, refresh_token)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, kind) DO UPDATE SET
	              access_token  = EXCLUDED.access_token,
	              refresh_token = EXCLUDED.refresh_token,
	              updated_at    = NOW()`
	_, err := s.db.ExecContext(ctx, query, userID, kind, accessToken, refreshToken)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	if details == "" {
		details = "{}"
	} else if !json.Valid([]byte(details)) {
		wrapped, _ := json.Marshal(map[string]string{"raw": details})
		details = string(wrapped)
	}

	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	_, err := s.db.ExecContext(context.Background(), query,
		userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- Users ---

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, avatar_url, role, created_at, updated_at
	          FROM users WHERE id = $1`

	var u domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
