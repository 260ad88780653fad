// Package assistant wraps the hosted OpenAI Assistants API: assistant and
// vector-store setup, document upload, thread management, and the
// create-run/poll/fetch-reply sequence. It implements core.AssistantManager.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/core"
)

// Options carries the tunables the manager needs. Poll interval, timeout, and
// the upload allow-list are configuration, not constants.
type Options struct {
	Model            string
	Name             string
	Instructions     string
	AllowedFileTypes []string
	MaxUploadBytes   int64
	PollInterval     time.Duration
	RunTimeout       time.Duration
}

type Manager struct {
	client *openai.Client
	opts   Options
	logger *zap.Logger
}

func NewManager(client *openai.Client, opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

func (m *Manager) EnsureAssistant(ctx context.Context, assistantID string) (string, error) {
	if assistantID != "" {
		_, err := m.client.RetrieveAssistant(ctx, assistantID)
		if err == nil {
			return assistantID, nil
		}
		if !isNotFound(err) {
			return "", core.NewTransportError("failed to retrieve assistant", err)
		}
		// Stale reference; create a fresh assistant below.
		m.logger.Warn("known assistant no longer exists remotely", zap.String("assistant_id", assistantID))
	}

	name := m.opts.Name
	instructions := m.opts.Instructions
	asst, err := m.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        m.opts.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	})
	if err != nil {
		return "", core.NewTransportError("failed to create assistant", err)
	}
	m.logger.Info("created assistant", zap.String("assistant_id", asst.ID), zap.String("model", m.opts.Model))
	return asst.ID, nil
}

func (m *Manager) EnsureVectorStore(ctx context.Context, assistantID, vectorStoreID string) (string, error) {
	if vectorStoreID != "" {
		_, err := m.client.RetrieveVectorStore(ctx, vectorStoreID)
		if err == nil {
			return vectorStoreID, nil
		}
		if !isNotFound(err) {
			return "", core.NewTransportError("failed to retrieve vector store", err)
		}
		m.logger.Warn("known vector store no longer exists remotely", zap.String("vector_store_id", vectorStoreID))
	}

	vs, err := m.client.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name: m.opts.Name + " documents",
	})
	if err != nil {
		return "", core.NewTransportError("failed to create vector store", err)
	}

	// Attach the store to the assistant's file-search tool so uploaded
	// documents become searchable for every following run.
	_, err = m.client.ModifyAssistant(ctx, assistantID, openai.AssistantRequest{
		Model: m.opts.Model,
		ToolResources: &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{VectorStoreIDs: []string{vs.ID}},
		},
	})
	if err != nil {
		return "", core.NewTransportError("failed to attach vector store to assistant", err)
	}
	m.logger.Info("created vector store", zap.String("vector_store_id", vs.ID), zap.String("assistant_id", assistantID))
	return vs.ID, nil
}

func (m *Manager) UploadDocument(ctx context.Context, vectorStoreID, filename string, data []byte) (string, error) {
	if err := m.validateDocument(filename, int64(len(data))); err != nil {
		return "", err
	}

	file, err := m.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", core.NewUploadError(fmt.Sprintf("failed to transfer %q", filename), err)
	}

	if _, err := m.client.CreateVectorStoreFile(ctx, vectorStoreID, openai.VectorStoreFileRequest{FileID: file.ID}); err != nil {
		return "", core.NewUploadError(fmt.Sprintf("failed to index %q", filename), err)
	}

	m.logger.Info("uploaded document",
		zap.String("file_id", file.ID),
		zap.String("filename", filename),
		zap.Int("size_bytes", len(data)))
	return file.ID, nil
}

// validateDocument rejects unsupported types and oversized payloads locally,
// before any network call.
func (m *Manager) validateDocument(filename string, size int64) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	allowed := false
	for _, t := range m.opts.AllowedFileTypes {
		if ext == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return core.NewUploadError(
			fmt.Sprintf("unsupported file type %q, allowed types: %s", ext, strings.Join(m.opts.AllowedFileTypes, ", ")), nil)
	}
	if size == 0 {
		return core.NewUploadError("empty file", nil)
	}
	if m.opts.MaxUploadBytes > 0 && size > m.opts.MaxUploadBytes {
		return core.NewUploadError(
			fmt.Sprintf("file exceeds the %d byte upload limit", m.opts.MaxUploadBytes), nil)
	}
	return nil
}

func (m *Manager) StartThread(ctx context.Context, threadID string) (string, error) {
	if threadID != "" {
		_, err := m.client.RetrieveThread(ctx, threadID)
		if err == nil {
			return threadID, nil
		}
		if !isNotFound(err) {
			return "", core.NewTransportError("failed to retrieve thread", err)
		}
		m.logger.Warn("known thread no longer exists remotely", zap.String("thread_id", threadID))
	}

	thread, err := m.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", core.NewTransportError("failed to create thread", err)
	}
	m.logger.Info("created thread", zap.String("thread_id", thread.ID))
	return thread.ID, nil
}

func (m *Manager) SendMessage(ctx context.Context, threadID, text string, fileIDs []string) error {
	req := openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	}
	for _, id := range fileIDs {
		req.Attachments = append(req.Attachments, openai.ThreadAttachment{
			FileID: id,
			Tools:  []openai.ThreadAttachmentTool{{Type: "file_search"}},
		})
	}

	if _, err := m.client.CreateMessage(ctx, threadID, req); err != nil {
		return core.NewTransportError("failed to send message", err)
	}
	return nil
}

// RunAndWait triggers one assistant turn and polls its status until it
// reaches a terminal state or the configured timeout elapses. Retry is left
// to the user; no polls are issued after timeout.
func (m *Manager) RunAndWait(ctx context.Context, threadID, assistantID string) (*core.Reply, error) {
	run, err := m.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, core.NewTransportError("failed to start run", err)
	}

	deadline := time.Now().Add(m.opts.RunTimeout)
	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			m.logger.Info("run completed",
				zap.String("run_id", run.ID),
				zap.String("thread_id", threadID))
			return m.latestReply(ctx, threadID)
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
			message := fmt.Sprintf("run ended with status %s", run.Status)
			if run.LastError != nil && run.LastError.Message != "" {
				message = fmt.Sprintf("%s: %s", message, run.LastError.Message)
			}
			return nil, core.NewRunFailedError(message, nil)
		case openai.RunStatusRequiresAction:
			// No function tools are registered, so a tool call can never be satisfied.
			return nil, core.NewRunFailedError("run requested a tool action this service does not provide", nil)
		}

		if time.Now().After(deadline) {
			return nil, core.NewRunTimeoutError(
				fmt.Sprintf("run %s did not complete within %s", run.ID, m.opts.RunTimeout), nil)
		}

		select {
		case <-ctx.Done():
			return nil, core.NewRunTimeoutError("run polling cancelled", ctx.Err())
		case <-time.After(m.opts.PollInterval):
		}

		run, err = m.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, core.NewTransportError("failed to poll run", err)
		}
	}
}

// latestReply fetches the newest assistant message from the thread and
// formats it for rendering.
func (m *Manager) latestReply(ctx context.Context, threadID string) (*core.Reply, error) {
	limit := 10
	order := "desc"
	msgs, err := m.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, core.NewTransportError("failed to fetch reply", err)
	}
	for _, msg := range msgs.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		return m.formatMessage(ctx, msg), nil
	}
	return nil, core.NewRunFailedError("assistant produced no reply", nil)
}

// formatMessage rewrites file-citation annotations into [n] footnote markers
// and resolves the cited filenames.
func (m *Manager) formatMessage(ctx context.Context, msg openai.Message) *core.Reply {
	var text strings.Builder
	var citations []string
	index := 0

	for _, part := range msg.Content {
		if part.Text == nil {
			continue
		}
		value := part.Text.Value
		for _, raw := range part.Text.Annotations {
			ann, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			marker, _ := ann["text"].(string)
			if marker == "" {
				continue
			}
			index++
			value = strings.ReplaceAll(value, marker, fmt.Sprintf(" [%d]", index))

			if fc, ok := ann["file_citation"].(map[string]any); ok {
				if fileID, ok := fc["file_id"].(string); ok && fileID != "" {
					name := fileID
					if file, err := m.client.GetFile(ctx, fileID); err == nil && file.FileName != "" {
						name = file.FileName
					} else if err != nil {
						m.logger.Warn("failed to resolve cited file", zap.String("file_id", fileID), zap.Error(err))
					}
					citations = append(citations, fmt.Sprintf("[%d] %s", index, name))
				}
			}
		}
		text.WriteString(value)
	}

	return &core.Reply{Text: text.String(), Citations: citations}
}

func (m *Manager) Transcript(ctx context.Context, threadID string) ([]core.Message, error) {
	limit := 100
	order := "asc"
	msgs, err := m.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, core.NewTransportError("failed to fetch transcript", err)
	}

	transcript := make([]core.Message, 0, len(msgs.Messages))
	for _, msg := range msgs.Messages {
		var content strings.Builder
		for _, part := range msg.Content {
			if part.Text != nil {
				content.WriteString(part.Text.Value)
			}
		}
		transcript = append(transcript, core.Message{
			Role:      msg.Role,
			Content:   content.String(),
			CreatedAt: time.Unix(int64(msg.CreatedAt), 0),
		})
	}
	return transcript, nil
}

func (m *Manager) ClearDocuments(ctx context.Context, vectorStoreID string, fileIDs []string) ([]string, error) {
	var removed []string
	for _, id := range fileIDs {
		if err := m.client.DeleteVectorStoreFile(ctx, vectorStoreID, id); err != nil {
			m.logger.Error("failed to detach file from vector store",
				zap.String("file_id", id),
				zap.String("vector_store_id", vectorStoreID),
				zap.Error(err))
			continue
		}
		removed = append(removed, id)
	}
	return removed, nil
}

func isNotFound(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}
