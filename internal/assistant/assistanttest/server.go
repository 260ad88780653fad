// Package assistanttest provides an in-memory fake of the OpenAI Assistants
// v2 endpoints the service talks to, for use in tests. Behavior is scripted
// through the exported fields; counters record what the client actually did.
package assistanttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	openai "github.com/sashabaranov/go-openai"
)

// ReplySpec describes the assistant message the fake appends when a run
// completes. Annotations use the raw wire shape of file citations.
type ReplySpec struct {
	Text        string
	Annotations []map[string]any
}

type wireText struct {
	Value       string           `json:"value"`
	Annotations []map[string]any `json:"annotations"`
}

type wireContent struct {
	Type string   `json:"type"`
	Text wireText `json:"text"`
}

type wireMessage struct {
	ID        string        `json:"id"`
	Object    string        `json:"object"`
	CreatedAt int64         `json:"created_at"`
	ThreadID  string        `json:"thread_id"`
	Role      string        `json:"role"`
	Content   []wireContent `json:"content"`
}

type runState struct {
	id       string
	threadID string
	step     int
	replied  bool
}

type Server struct {
	mu      sync.Mutex
	httpSrv *httptest.Server

	// RunStatuses scripts the status sequence a run reports: the first entry
	// is the status at creation, later entries are returned by successive
	// polls, and the last entry repeats forever. Defaults to ["completed"].
	RunStatuses []string
	// RunError is the last_error message reported for failed runs.
	RunError string
	// EchoReply makes a completing run answer with the last user message
	// verbatim. Ignored when Reply is set.
	EchoReply bool
	// Reply, when set, is the assistant message appended on completion.
	Reply *ReplySpec

	AssistantCreates   int
	ThreadCreates      int
	VectorStoreCreates int
	FileUploads        int
	RunPolls           int
	Requests           int

	assistants   map[string]bool
	threads      map[string][]wireMessage
	vectorStores map[string]map[string]bool
	files        map[string]string // file ID -> filename
	runs         map[string]*runState
	seq          int
}

func NewServer() *Server {
	s := &Server{
		RunStatuses:  []string{"completed"},
		assistants:   make(map[string]bool),
		threads:      make(map[string][]wireMessage),
		vectorStores: make(map[string]map[string]bool),
		files:        make(map[string]string),
		runs:         make(map[string]*runState),
	}

	r := chi.NewRouter()
	r.Use(s.countRequests)

	r.Post("/v1/assistants", s.createAssistant)
	r.Get("/v1/assistants/{assistantID}", s.getAssistant)
	r.Post("/v1/assistants/{assistantID}", s.modifyAssistant)

	r.Post("/v1/files", s.createFile)
	r.Get("/v1/files/{fileID}", s.getFile)

	r.Post("/v1/vector_stores", s.createVectorStore)
	r.Get("/v1/vector_stores/{vectorStoreID}", s.getVectorStore)
	r.Post("/v1/vector_stores/{vectorStoreID}/files", s.addVectorStoreFile)
	r.Delete("/v1/vector_stores/{vectorStoreID}/files/{fileID}", s.deleteVectorStoreFile)

	r.Post("/v1/threads", s.createThread)
	r.Get("/v1/threads/{threadID}", s.getThread)
	r.Post("/v1/threads/{threadID}/messages", s.createMessage)
	r.Get("/v1/threads/{threadID}/messages", s.listMessages)
	r.Post("/v1/threads/{threadID}/runs", s.createRun)
	r.Get("/v1/threads/{threadID}/runs/{runID}", s.getRun)

	s.httpSrv = httptest.NewServer(r)
	return s
}

func (s *Server) Close() {
	s.httpSrv.Close()
}

// Client returns a go-openai client pointed at the fake.
func (s *Server) Client() *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = s.httpSrv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.Requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"param":   nil,
			"code":    nil,
		},
	})
}

func (s *Server) createAssistant(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	id := s.nextID("asst")
	s.assistants[id] = true
	s.AssistantCreates++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"object":     "assistant",
		"created_at": time.Now().Unix(),
		"model":      req["model"],
		"name":       req["name"],
	})
}

func (s *Server) getAssistant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assistantID")
	s.mu.Lock()
	exists := s.assistants[id]
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No assistant found with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "assistant"})
}

func (s *Server) modifyAssistant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assistantID")
	s.mu.Lock()
	exists := s.assistants[id]
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No assistant found with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "assistant"})
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": err.Error()}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "file field missing"}})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	s.mu.Lock()
	id := s.nextID("file")
	s.files[id] = header.Filename
	s.FileUploads++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"object":     "file",
		"bytes":      len(data),
		"created_at": time.Now().Unix(),
		"filename":   header.Filename,
		"purpose":    r.FormValue("purpose"),
	})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")
	s.mu.Lock()
	name, exists := s.files[id]
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No file found with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "file", "filename": name})
}

func (s *Server) createVectorStore(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := s.nextID("vs")
	s.vectorStores[id] = make(map[string]bool)
	s.VectorStoreCreates++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "vector_store", "created_at": time.Now().Unix()})
}

func (s *Server) getVectorStore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vectorStoreID")
	s.mu.Lock()
	_, exists := s.vectorStores[id]
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No vector store found with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "vector_store"})
}

func (s *Server) addVectorStoreFile(w http.ResponseWriter, r *http.Request) {
	vsID := chi.URLParam(r, "vectorStoreID")
	var req struct {
		FileID string `json:"file_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	files, exists := s.vectorStores[vsID]
	if exists {
		files[req.FileID] = true
	}
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No vector store found with id "+vsID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              req.FileID,
		"object":          "vector_store.file",
		"vector_store_id": vsID,
		"status":          "completed",
	})
}

func (s *Server) deleteVectorStoreFile(w http.ResponseWriter, r *http.Request) {
	vsID := chi.URLParam(r, "vectorStoreID")
	fileID := chi.URLParam(r, "fileID")

	s.mu.Lock()
	files, exists := s.vectorStores[vsID]
	deleted := exists && files[fileID]
	if deleted {
		delete(files, fileID)
	}
	s.mu.Unlock()
	if !deleted {
		writeNotFound(w, "No file found in vector store "+vsID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": fileID, "object": "vector_store.file.deleted", "deleted": true})
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := s.nextID("thread")
	s.threads[id] = nil
	s.ThreadCreates++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "thread", "created_at": time.Now().Unix()})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	s.mu.Lock()
	_, exists := s.threads[id]
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No thread found with id "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "thread"})
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, exists := s.threads[threadID]
	var msg wireMessage
	if exists {
		msg = wireMessage{
			ID:        s.nextID("msg"),
			Object:    "thread.message",
			CreatedAt: time.Now().Unix(),
			ThreadID:  threadID,
			Role:      req.Role,
			Content:   []wireContent{{Type: "text", Text: wireText{Value: req.Content, Annotations: []map[string]any{}}}},
		}
		s.threads[threadID] = append(s.threads[threadID], msg)
	}
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No thread found with id "+threadID)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	s.mu.Lock()
	msgs, exists := s.threads[threadID]
	out := make([]wireMessage, len(msgs))
	copy(out, msgs)
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No thread found with id "+threadID)
		return
	}

	if r.URL.Query().Get("order") != "asc" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object":   "list",
		"data":     out,
		"has_more": false,
	})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req struct {
		AssistantID string `json:"assistant_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, exists := s.threads[threadID]
	var run *runState
	var body map[string]any
	if exists {
		run = &runState{id: s.nextID("run"), threadID: threadID}
		s.runs[run.id] = run
		body = s.runJSON(run, req.AssistantID)
	}
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No thread found with id "+threadID)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	s.mu.Lock()
	run, exists := s.runs[runID]
	var body map[string]any
	if exists {
		s.RunPolls++
		run.step++
		body = s.runJSON(run, "")
	}
	s.mu.Unlock()
	if !exists {
		writeNotFound(w, "No run found with id "+runID)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// runJSON renders the run at its current script position and appends the
// assistant reply the first time the run reports completion. Callers hold mu.
func (s *Server) runJSON(run *runState, assistantID string) map[string]any {
	statuses := s.RunStatuses
	if len(statuses) == 0 {
		statuses = []string{"completed"}
	}
	step := run.step
	if step >= len(statuses) {
		step = len(statuses) - 1
	}
	status := statuses[step]

	if status == "completed" && !run.replied {
		run.replied = true
		s.appendReply(run.threadID)
	}

	body := map[string]any{
		"id":           run.id,
		"object":       "thread.run",
		"created_at":   time.Now().Unix(),
		"thread_id":    run.threadID,
		"assistant_id": assistantID,
		"status":       status,
	}
	if status == "failed" && s.RunError != "" {
		body["last_error"] = map[string]any{"code": "server_error", "message": s.RunError}
	}
	return body
}

func (s *Server) appendReply(threadID string) {
	text := wireText{Value: "ok", Annotations: []map[string]any{}}
	switch {
	case s.Reply != nil:
		text = wireText{Value: s.Reply.Text, Annotations: s.Reply.Annotations}
	case s.EchoReply:
		for i := len(s.threads[threadID]) - 1; i >= 0; i-- {
			if s.threads[threadID][i].Role == "user" {
				text.Value = s.threads[threadID][i].Content[0].Text.Value
				break
			}
		}
	}
	s.threads[threadID] = append(s.threads[threadID], wireMessage{
		ID:        s.nextID("msg"),
		Object:    "thread.message",
		CreatedAt: time.Now().Unix(),
		ThreadID:  threadID,
		Role:      "assistant",
		Content:   []wireContent{{Type: "text", Text: text}},
	})
}
