package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chriszimbizi/study-buddy/internal/assistant"
	"github.com/chriszimbizi/study-buddy/internal/assistant/assistanttest"
	"github.com/chriszimbizi/study-buddy/internal/core"
	"github.com/chriszimbizi/study-buddy/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *assistanttest.Server) {
	t.Helper()

	mock := assistanttest.NewServer()
	t.Cleanup(mock.Close)

	manager := assistant.NewManager(mock.Client(), assistant.Options{
		Model:            "gpt-4o-mini",
		Name:             "Study Buddy",
		Instructions:     "test",
		AllowedFileTypes: []string{"pdf", "docx", "txt"},
		MaxUploadBytes:   1 << 20,
		PollInterval:     5 * time.Millisecond,
		RunTimeout:       time.Second,
	}, zap.NewNop())

	sessionService := core.NewSessionService(store.NewMemoryStorage(), manager, zap.NewNop())
	handler := NewAPIHandler(sessionService, 1<<20, zap.NewNop())

	srv := httptest.NewServer(NewRouter(handler, nil, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, mock
}

func createSession(t *testing.T, srv *httptest.Server) store.Session {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session store.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session
}

func uploadFile(t *testing.T, srv *httptest.Server, sessionID, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/documents", srv.URL, sessionID),
		mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	session := createSession(t, srv)
	assert.NotEmpty(t, session.ID)

	resp, err := http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sessions []store.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/no-such-session")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	srv, mock := newTestServer(t)
	session := createSession(t, srv)

	resp := uploadFile(t, srv, session.ID, "malware.exe", "payload")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, 0, mock.FileUploads, "rejected upload must not reach the external API")

	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "upload_error", body.Error.Kind)
}

func TestUploadAndListDocuments(t *testing.T) {
	srv, mock := newTestServer(t)
	session := createSession(t, srv)

	resp := uploadFile(t, srv, session.ID, "paper.pdf", "%PDF-1.4 body")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, mock.FileUploads)

	listResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/documents", srv.URL, session.ID))
	require.NoError(t, err)
	defer listResp.Body.Close()

	var files []store.UploadedFile
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&files))
	require.Len(t, files, 1)
	assert.Equal(t, "paper.pdf", files[0].Filename)
}

func TestPostMessageReturnsEchoedReply(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.EchoReply = true
	session := createSession(t, srv)

	payload, _ := json.Marshal(map[string]string{"content": "What is this paper about?"})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, session.ID),
		"application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply core.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "What is this paper about?", reply.Text)
}

func TestPostMessageEmptyContent(t *testing.T) {
	srv, _ := newTestServer(t)
	session := createSession(t, srv)

	payload, _ := json.Marshal(map[string]string{"content": "   "})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, session.ID),
		"application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostMessageRunTimeout(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.RunStatuses = []string{"in_progress"}
	session := createSession(t, srv)

	payload, _ := json.Marshal(map[string]string{"content": "hello"})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, session.ID),
		"application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestTranscriptAfterConversation(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.EchoReply = true
	session := createSession(t, srv)

	payload, _ := json.Marshal(map[string]string{"content": "first question"})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, session.ID),
		"application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tResp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/messages", srv.URL, session.ID))
	require.NoError(t, err)
	defer tResp.Body.Close()

	var transcript []core.Message
	require.NoError(t, json.NewDecoder(tResp.Body).Decode(&transcript))
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "assistant", transcript[1].Role)
}

func TestClearDocuments(t *testing.T) {
	srv, _ := newTestServer(t)
	session := createSession(t, srv)

	resp := uploadFile(t, srv, session.ID, "notes.txt", "some notes")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/sessions/%s/documents", srv.URL, session.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	var body ClearDocumentsResponse
	require.NoError(t, json.NewDecoder(delResp.Body).Decode(&body))
	assert.Equal(t, []string{"notes.txt"}, body.Removed)
}
