package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps sessions and file metadata in process memory. Used by
// tests and for running without a database file.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	files    map[string][]UploadedFile
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*Session),
		files:    make(map[string][]UploadedFile),
	}
}

func (s *MemoryStorage) CreateSession() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	s.sessions[session.ID] = session
	return copySession(session), nil
}

func (s *MemoryStorage) GetSession(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if session, exists := s.sessions[sessionID]; exists {
		return copySession(session), nil
	}
	return nil, nil
}

func (s *MemoryStorage) ListSessions() ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *copySession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *MemoryStorage) UpdateSessionTitle(sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session not found for title update")
	}
	session.Title = &title
	return nil
}

func (s *MemoryStorage) SaveSessionRefs(sessionID, assistantID, threadID, vectorStoreID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session not found for ref update")
	}
	if assistantID != "" {
		session.AssistantID = assistantID
	}
	if threadID != "" {
		session.ThreadID = threadID
	}
	if vectorStoreID != "" {
		session.VectorStoreID = vectorStoreID
	}
	return nil
}

func (s *MemoryStorage) AddFile(file *UploadedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now()
	}
	s.files[file.SessionID] = append(s.files[file.SessionID], *file)
	return nil
}

func (s *MemoryStorage) ListFiles(sessionID string) ([]UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]UploadedFile, len(s.files[sessionID]))
	copy(files, s.files[sessionID])
	return files, nil
}

func (s *MemoryStorage) DeleteFiles(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, sessionID)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func copySession(session *Session) *Session {
	out := *session
	if session.Title != nil {
		title := *session.Title
		out.Title = &title
	}
	return &out
}
