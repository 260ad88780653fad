package store

// Storage persists sessions and their uploaded-file metadata. Two
// implementations exist: SQLite for normal operation and an in-memory store
// for tests and throwaway runs.
type Storage interface {
	CreateSession() (*Session, error)
	GetSession(sessionID string) (*Session, error)
	ListSessions() ([]Session, error)
	UpdateSessionTitle(sessionID, title string) error

	// SaveSessionRefs persists the remote identifiers a session has acquired.
	// Empty arguments leave the stored value untouched.
	SaveSessionRefs(sessionID, assistantID, threadID, vectorStoreID string) error

	AddFile(file *UploadedFile) error
	ListFiles(sessionID string) ([]UploadedFile, error)
	DeleteFiles(sessionID string) error

	Close() error
}
