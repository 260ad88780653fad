package core

import (
	"context"
	"time"
)

// Message is one transcript entry fetched from the remote thread.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is one completed assistant turn. Citations hold the source filenames
// referenced by the [n] footnote markers rewritten into Text.
type Reply struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}

// AssistantManager is the boundary to the hosted assistant service. All
// assistant, file, thread, and run state lives on the remote side; callers
// hold only the identifiers these methods return.
type AssistantManager interface {
	// EnsureAssistant returns assistantID when it still resolves remotely,
	// otherwise creates a new assistant. Pass "" on first use.
	EnsureAssistant(ctx context.Context, assistantID string) (string, error)

	// EnsureVectorStore returns vectorStoreID or creates a store and attaches
	// it to the assistant's file-search tool resources.
	EnsureVectorStore(ctx context.Context, assistantID, vectorStoreID string) (string, error)

	// UploadDocument validates filename and size locally, then transfers the
	// bytes and adds the resulting file to the vector store.
	UploadDocument(ctx context.Context, vectorStoreID, filename string, data []byte) (string, error)

	// StartThread returns threadID when known, otherwise creates a thread.
	StartThread(ctx context.Context, threadID string) (string, error)

	// SendMessage appends a user message to the thread, optionally attaching
	// previously uploaded files for retrieval.
	SendMessage(ctx context.Context, threadID, text string, fileIDs []string) error

	// RunAndWait triggers a run and polls it until a terminal state or the
	// configured timeout, then returns the assistant's formatted reply.
	RunAndWait(ctx context.Context, threadID, assistantID string) (*Reply, error)

	// Transcript lists the thread's messages in chronological order.
	Transcript(ctx context.Context, threadID string) ([]Message, error)

	// ClearDocuments detaches the given files from the vector store and
	// returns the IDs that were actually removed.
	ClearDocuments(ctx context.Context, vectorStoreID string, fileIDs []string) ([]string, error)
}
