package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/store"
)

// SessionService orchestrates the local session store and the remote
// assistant manager. Remote references (assistant, thread, vector store) are
// acquired lazily, persisted per session, and reused on every later call.
type SessionService struct {
	dbStore store.Storage
	manager AssistantManager
	logger  *zap.Logger
}

func NewSessionService(db store.Storage, manager AssistantManager, logger *zap.Logger) *SessionService {
	return &SessionService{
		dbStore: db,
		manager: manager,
		logger:  logger,
	}
}

func (s *SessionService) CreateSession() (*store.Session, error) {
	session, err := s.dbStore.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session in DB: %w", err)
	}
	s.logger.Info("created session", zap.String("session_id", session.ID))
	return session, nil
}

func (s *SessionService) ListSessions() ([]store.Session, error) {
	return s.dbStore.ListSessions()
}

func (s *SessionService) GetSession(sessionID string) (*store.Session, []store.UploadedFile, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil, NewNotFoundError("session not found")
	}
	files, err := s.dbStore.ListFiles(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list session files: %w", err)
	}
	return session, files, nil
}

// UploadDocument transfers one document to the assistant service on behalf of
// the session, setting up the assistant and vector store on first use.
func (s *SessionService) UploadDocument(ctx context.Context, sessionID, filename string, data []byte) (*store.UploadedFile, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, NewNotFoundError("session not found")
	}

	assistantID, err := s.ensureAssistant(ctx, session)
	if err != nil {
		return nil, err
	}

	vectorStoreID := session.VectorStoreID
	if ensured, err := s.manager.EnsureVectorStore(ctx, assistantID, vectorStoreID); err != nil {
		return nil, err
	} else if ensured != vectorStoreID {
		vectorStoreID = ensured
		if err := s.dbStore.SaveSessionRefs(sessionID, "", "", vectorStoreID); err != nil {
			return nil, fmt.Errorf("failed to save vector store ref: %w", err)
		}
	}

	fileID, err := s.manager.UploadDocument(ctx, vectorStoreID, filename, data)
	if err != nil {
		return nil, err
	}

	file := &store.UploadedFile{
		SessionID: sessionID,
		FileID:    fileID,
		Filename:  filename,
		SizeBytes: int64(len(data)),
	}
	if err := s.dbStore.AddFile(file); err != nil {
		return nil, fmt.Errorf("failed to record uploaded file: %w", err)
	}

	// First upload names the session after the document.
	if session.Title == nil || *session.Title == "" {
		if err := s.dbStore.UpdateSessionTitle(sessionID, filename); err != nil {
			s.logger.Warn("failed to set session title", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	return file, nil
}

func (s *SessionService) ListDocuments(sessionID string) ([]store.UploadedFile, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, NewNotFoundError("session not found")
	}
	return s.dbStore.ListFiles(sessionID)
}

// ClearDocuments detaches the session's documents from its vector store and
// drops the local metadata for those that were removed.
func (s *SessionService) ClearDocuments(ctx context.Context, sessionID string) ([]string, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, NewNotFoundError("session not found")
	}

	files, err := s.dbStore.ListFiles(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.FileID)
	}

	removed, err := s.manager.ClearDocuments(ctx, session.VectorStoreID, fileIDs)
	if err != nil {
		return nil, err
	}
	if err := s.dbStore.DeleteFiles(sessionID); err != nil {
		return nil, fmt.Errorf("failed to delete file metadata: %w", err)
	}

	names := make([]string, 0, len(removed))
	for _, id := range removed {
		for _, f := range files {
			if f.FileID == id {
				names = append(names, f.Filename)
				break
			}
		}
	}
	s.logger.Info("cleared session documents", zap.String("session_id", sessionID), zap.Int("removed", len(removed)))
	return names, nil
}

// PostMessage appends the user's text to the session thread, runs the
// assistant, waits for the turn to finish, and returns the formatted reply.
// The call blocks for the duration of the run; one run per session at a time.
func (s *SessionService) PostMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, NewNotFoundError("session not found")
	}

	assistantID, err := s.ensureAssistant(ctx, session)
	if err != nil {
		return nil, err
	}

	threadID := session.ThreadID
	if ensured, err := s.manager.StartThread(ctx, threadID); err != nil {
		return nil, err
	} else if ensured != threadID {
		threadID = ensured
		if err := s.dbStore.SaveSessionRefs(sessionID, "", threadID, ""); err != nil {
			return nil, fmt.Errorf("failed to save thread ref: %w", err)
		}
	}

	if err := s.manager.SendMessage(ctx, threadID, text, nil); err != nil {
		return nil, err
	}

	reply, err := s.manager.RunAndWait(ctx, threadID, assistantID)
	if err != nil {
		return nil, err
	}

	// A session created without an upload gets its title from the first message.
	if session.Title == nil || *session.Title == "" {
		title := strings.TrimSpace(text)
		if len(title) > 60 {
			title = title[:60]
		}
		if title != "" {
			if err := s.dbStore.UpdateSessionTitle(sessionID, title); err != nil {
				s.logger.Warn("failed to set session title", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}

	return reply, nil
}

// Transcript renders the session's conversation from the remote thread. A
// session that has not started chatting yet has an empty transcript.
func (s *SessionService) Transcript(ctx context.Context, sessionID string) ([]Message, error) {
	session, err := s.dbStore.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, NewNotFoundError("session not found")
	}
	if session.ThreadID == "" {
		return []Message{}, nil
	}
	return s.manager.Transcript(ctx, session.ThreadID)
}

// ensureAssistant resolves the session's assistant reference, creating and
// persisting one the first time. Repeat calls return the same reference.
func (s *SessionService) ensureAssistant(ctx context.Context, session *store.Session) (string, error) {
	assistantID, err := s.manager.EnsureAssistant(ctx, session.AssistantID)
	if err != nil {
		return "", err
	}
	if assistantID != session.AssistantID {
		if err := s.dbStore.SaveSessionRefs(session.ID, assistantID, "", ""); err != nil {
			return "", fmt.Errorf("failed to save assistant ref: %w", err)
		}
		session.AssistantID = assistantID
	}
	return assistantID, nil
}
