package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT,
        assistant_id TEXT NOT NULL DEFAULT '',
        thread_id TEXT NOT NULL DEFAULT '',
        vector_store_id TEXT NOT NULL DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS uploaded_files (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        file_id TEXT NOT NULL,
        filename TEXT NOT NULL,
        size_bytes INTEGER NOT NULL DEFAULT 0,
        uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (session_id) REFERENCES sessions (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Session methods
func (s *SQLiteStore) CreateSession() (*Session, error) {
	sessionID := uuid.NewString()
	stmt, err := s.db.Prepare("INSERT INTO sessions (id, created_at) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute session insert: %w", err)
	}
	return &Session{ID: sessionID, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetSession(sessionID string) (*Session, error) {
	var session Session
	var title sql.NullString
	err := s.db.QueryRow(
		"SELECT id, title, assistant_id, thread_id, vector_store_id, created_at FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&session.ID, &title, &session.AssistantID, &session.ThreadID, &session.VectorStoreID, &session.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if title.Valid {
		session.Title = &title.String
	}
	return &session, nil
}

func (s *SQLiteStore) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(
		"SELECT id, title, assistant_id, thread_id, vector_store_id, created_at FROM sessions ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var title sql.NullString
		if err := rows.Scan(&session.ID, &title, &session.AssistantID, &session.ThreadID, &session.VectorStoreID, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if title.Valid {
			session.Title = &title.String
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) UpdateSessionTitle(sessionID, title string) error {
	res, err := s.db.Exec("UPDATE sessions SET title = ? WHERE id = ?", title, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found for title update")
	}
	return nil
}

func (s *SQLiteStore) SaveSessionRefs(sessionID, assistantID, threadID, vectorStoreID string) error {
	// NULLIF/COALESCE keeps existing values when an argument is empty.
	res, err := s.db.Exec(`
        UPDATE sessions SET
            assistant_id = COALESCE(NULLIF(?, ''), assistant_id),
            thread_id = COALESCE(NULLIF(?, ''), thread_id),
            vector_store_id = COALESCE(NULLIF(?, ''), vector_store_id)
        WHERE id = ?`,
		assistantID, threadID, vectorStoreID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save session refs: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found for ref update")
	}
	return nil
}

// Uploaded file methods
func (s *SQLiteStore) AddFile(file *UploadedFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO uploaded_files (id, session_id, file_id, filename, size_bytes, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)",
		file.ID, file.SessionID, file.FileID, file.Filename, file.SizeBytes, file.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert uploaded file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListFiles(sessionID string) ([]UploadedFile, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, file_id, filename, size_bytes, uploaded_at FROM uploaded_files WHERE session_id = ? ORDER BY uploaded_at ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploaded files: %w", err)
	}
	defer rows.Close()

	var files []UploadedFile
	for rows.Next() {
		var f UploadedFile
		if err := rows.Scan(&f.ID, &f.SessionID, &f.FileID, &f.Filename, &f.SizeBytes, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan uploaded file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) DeleteFiles(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM uploaded_files WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete uploaded files: %w", err)
	}
	return nil
}
