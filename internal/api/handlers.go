package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/core"
	"github.com/chriszimbizi/study-buddy/internal/store"
)

type APIHandler struct {
	sessionService *core.SessionService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewAPIHandler(ss *core.SessionService, maxUploadBytes int64, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		sessionService: ss,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// writeError renders any error as an inline JSON message. AppErrors keep
// their kind and mapped status; everything else becomes a 500.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		appErr = &core.AppError{Kind: "internal_error", Message: "internal server error"}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": appErr})
		return
	}
	if appErr.Err != nil {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr.Err))
	}
	writeJSON(w, appErr.HTTPStatusCode(), map[string]any{"error": appErr})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.CreateSession()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionService.ListSessions()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type SessionDetailResponse struct {
	*store.Session
	Files []store.UploadedFile `json:"files"`
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, files, err := h.sessionService.GetSession(sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []store.UploadedFile{}
	}
	writeJSON(w, http.StatusOK, SessionDetailResponse{Session: session, Files: files})
}

// UploadDocumentHandler accepts one multipart file under the "file" field.
// Unsupported types are rejected before anything reaches the external API.
func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, r, core.NewUploadError("invalid or oversized multipart request", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, core.NewUploadError("multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, core.NewUploadError("failed to read uploaded file", err))
		return
	}

	uploaded, err := h.sessionService.UploadDocument(r.Context(), sessionID, header.Filename, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	files, err := h.sessionService.ListDocuments(sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []store.UploadedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

type ClearDocumentsResponse struct {
	Removed []string `json:"removed"`
}

func (h *APIHandler) ClearDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	removed, err := h.sessionService.ClearDocuments(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, ClearDocumentsResponse{Removed: removed})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	reply, err := h.sessionService.PostMessage(r.Context(), sessionID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *APIHandler) GetTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	transcript, err := h.sessionService.Transcript(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}
