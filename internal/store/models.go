package store

import "time"

// Session is one user's interaction lifetime. The assistant, thread, and
// vector store columns hold remote identifiers and are filled in lazily the
// first time the session needs them.
type Session struct {
	ID            string    `json:"id"` // Using UUID for external ID
	Title         *string   `json:"title"` // Nullable
	AssistantID   string    `json:"assistant_id,omitempty"`
	ThreadID      string    `json:"thread_id,omitempty"`
	VectorStoreID string    `json:"vector_store_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// UploadedFile records a document transferred to the assistant service, so
// the session can list and clear its documents later. The bytes themselves
// live remotely; this is the local metadata sidecar.
type UploadedFile struct {
	ID         string    `json:"id"` // Using UUID for external ID
	SessionID  string    `json:"session_id"`
	FileID     string    `json:"file_id"` // Remote file identifier
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}
