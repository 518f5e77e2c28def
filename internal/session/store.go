// Package session persists the client's application context: identity,
// language, theme, selected company and the post-login redirect path. It
// replaces the ambient key-value storage the platform UI used to scatter
// through components: hydrated at startup, written on explicit user actions,
// cleared on logout.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const profileKey = "default"

// Session is the hydrated application context.
type Session struct {
	UserID          string
	Token           string
	Language        string
	Theme           string
	SelectedCompany string
	RedirectPath    string
	UpdatedAt       time.Time
}

// Store keeps the session in a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_profiles (
			profile TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			theme TEXT NOT NULL DEFAULT '',
			selected_company TEXT NOT NULL DEFAULT '',
			redirect_path TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Hydrate loads the session. When no profile exists yet it returns the
// platform defaults (language fa, light theme) without writing anything.
func (s *Store) Hydrate(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, token, language, theme, selected_company, redirect_path, updated_at
		FROM session_profiles WHERE profile = ?`, profileKey)

	var sess Session
	err := row.Scan(&sess.UserID, &sess.Token, &sess.Language, &sess.Theme,
		&sess.SelectedCompany, &sess.RedirectPath, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Session{Language: "fa", Theme: "light"}, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Language == "" {
		sess.Language = "fa"
	}
	if sess.Theme == "" {
		sess.Theme = "light"
	}
	return &sess, nil
}

// SetUser records the authenticated identity and its bearer token.
func (s *Store) SetUser(ctx context.Context, userID, token string) error {
	return s.set(ctx, "user_id = ?, token = ?", userID, token)
}

// SetLanguage records the UI language.
func (s *Store) SetLanguage(ctx context.Context, language string) error {
	return s.set(ctx, "language = ?", language)
}

// SetTheme records the UI theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	return s.set(ctx, "theme = ?", theme)
}

// SetSelectedCompany records the company the user is browsing.
func (s *Store) SetSelectedCompany(ctx context.Context, companyID string) error {
	return s.set(ctx, "selected_company = ?", companyID)
}

// SetRedirectPath remembers where to return after authentication.
func (s *Store) SetRedirectPath(ctx context.Context, path string) error {
	return s.set(ctx, "redirect_path = ?", path)
}

// Clear wipes the session (logout).
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_profiles WHERE profile = ?`, profileKey)
	return err
}

func (s *Store) set(ctx context.Context, assignment string, args ...any) error {
	if err := s.ensureRow(ctx); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`UPDATE session_profiles SET %s, updated_at = ? WHERE profile = ?`, assignment)
	args = append(args, time.Now(), profileKey)
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *Store) ensureRow(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_profiles (profile, language, theme)
		VALUES (?, 'fa', 'light')
		ON CONFLICT(profile) DO NOTHING`, profileKey)
	return err
}
