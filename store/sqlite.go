package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrGoogleIDTaken   = errors.New("google id already registered")
	ErrSessionNotFound = errors.New("session not found")
)

type sqliteStore struct {
	db    *sql.DB
	mutex sync.Mutex
}

func newSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	store := &sqliteStore{
		db: db,
	}

	if err := store.initializeTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing tables: %w", err)
	}

	return store, nil
}

func (s *sqliteStore) initializeTables() error {
	// username and google_id are UNIQUE but nullable: sqlite permits any
	// number of NULLs in a unique column, so local-only and google-only
	// accounts never collide. The google_id constraint is what makes a
	// concurrent first OAuth login resolve to a single row.
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS user (
            id INTEGER NOT NULL PRIMARY KEY,
            username TEXT UNIQUE,
            password_hash BLOB,
            password_salt BLOB,
            google_id TEXT UNIQUE,
            name TEXT,
            secret TEXT
        )
    `)
	if err != nil {
		return fmt.Errorf("error creating user table: %w", err)
	}

	_, err = s.db.Exec(`
        CREATE INDEX IF NOT EXISTS google_id_index ON user(google_id)
    `)
	if err != nil {
		return fmt.Errorf("error creating google_id index: %w", err)
	}

	_, err = s.db.Exec(`
        CREATE TABLE IF NOT EXISTS session (
            id TEXT NOT NULL PRIMARY KEY,
            user_id INTEGER NOT NULL REFERENCES user(id),
            expires_at INTEGER NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("error creating session table: %w", err)
	}

	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// nullIfEmpty keeps unset optional columns NULL so the unique indexes
// and the secret filter behave.
func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *sqliteStore) CreateUser(user *User) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	query := `
        INSERT INTO user (username, password_hash, password_salt, google_id, name, secret)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	result, err := s.db.Exec(query,
		nullIfEmpty(user.Username),
		user.PasswordHash,
		user.PasswordSalt,
		nullIfEmpty(user.GoogleID),
		nullIfEmpty(user.Name),
		nullIfEmpty(user.Secret),
	)
	if err != nil {
		return 0, mapConstraintError(err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting last insert id: %w", err)
	}
	return userID, nil
}

func mapConstraintError(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		msg := sqlErr.Error()
		switch {
		case strings.Contains(msg, "user.username"):
			return ErrUsernameTaken
		case strings.Contains(msg, "user.google_id"):
			return ErrGoogleIDTaken
		}
	}
	return fmt.Errorf("error creating user: %w", err)
}

const userColumns = "id, username, password_hash, password_salt, google_id, name, secret"

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	user := &User{}
	var username, googleID, name, secret sql.NullString
	err := row.Scan(&user.ID, &username, &user.PasswordHash, &user.PasswordSalt, &googleID, &name, &secret)
	if err != nil {
		return nil, err
	}
	user.Username = username.String
	user.GoogleID = googleID.String
	user.Name = name.String
	user.Secret = secret.String
	return user, nil
}

func (s *sqliteStore) UserByID(userID int64) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM user WHERE id = ?`, userID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user by id: %w", err)
	}
	return user, nil
}

func (s *sqliteStore) UserByUsername(username string) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM user WHERE username = ?`, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user by username: %w", err)
	}
	return user, nil
}

func (s *sqliteStore) UserByGoogleID(googleID string) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM user WHERE google_id = ?`, googleID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user by google id: %w", err)
	}
	return user, nil
}

// SetSecret overwrites the user's secret. Single UPDATE, last write wins.
func (s *sqliteStore) SetSecret(userID int64, secret string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result, err := s.db.Exec("UPDATE user SET secret = ? WHERE id = ?", nullIfEmpty(secret), userID)
	if err != nil {
		return fmt.Errorf("error setting secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *sqliteStore) UsersWithSecret() ([]User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM user WHERE secret IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("error querying users with secret: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *sqliteStore) CreateSession(sessionID string, userID int64, expiresAt int64) (*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow("SELECT EXISTS(SELECT 1 FROM user WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	query := "INSERT INTO session (id, user_id, expires_at) VALUES (?, ?, ?)"
	_, err = tx.Exec(query, sessionID, userID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return session, nil
}

func (s *sqliteStore) DeleteSessionsByUserID(userID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := s.db.Exec("DELETE FROM session WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("error deleting sessions by userID: %w", err)
	}
	return nil
}

func (s *sqliteStore) DeleteSessionBySessionID(sessionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := s.db.Exec("DELETE FROM session WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("error deleting session by sessionID: %w", err)
	}
	return nil
}

func (s *sqliteStore) SessionAndUserBySessionID(sessionID string) (*Session, *User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session := &Session{}
	user := &User{}
	var username, googleID, name, secret sql.NullString

	query := `
        SELECT session.id, session.user_id, session.expires_at,
               user.id, user.username, user.password_hash, user.password_salt,
               user.google_id, user.name, user.secret
        FROM session
        INNER JOIN user ON session.user_id = user.id
        WHERE session.id = ?
    `
	err := s.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&user.ID,
		&username,
		&user.PasswordHash,
		&user.PasswordSalt,
		&googleID,
		&name,
		&secret,
	)

	if err == sql.ErrNoRows {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error getting session and user: %w", err)
	}

	user.Username = username.String
	user.GoogleID = googleID.String
	user.Name = name.String
	user.Secret = secret.String
	return session, user, nil
}

func (s *sqliteStore) RefreshSession(sessionID string, newExpiresAt int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	query := "UPDATE session SET expires_at = ? WHERE id = ?"
	_, err := s.db.Exec(query, newExpiresAt, sessionID)
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}
	return nil
}
