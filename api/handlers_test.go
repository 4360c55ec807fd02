package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-dupfinder/internal/engine"
	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/session"
	testutil "github.com/gcbaptista/go-dupfinder/internal/testing"
)

type testServer struct {
	router   *gin.Engine
	sessions *session.Store
	cookie   *http.Cookie
}

func setupTestServer(t *testing.T, texts ...string) *testServer {
	t.Helper()
	return setupTestServerWithEngine(t, testutil.CreateTestEngine(t, texts...))
}

func setupTestServerWithEngine(t *testing.T, eng *engine.Engine) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(), RequestSizeLimitMiddleware(1<<20))
	sessions := session.NewStore()
	SetupRoutes(router, eng, sessions)

	return &testServer{router: router, sessions: sessions}
}

// do sends a request as user alice, carrying the session cookie once one was issued.
func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUserID, "alice")
	req.Header.Set(HeaderUserEmail, "alice@example.com")
	req.Header.Set(HeaderUserNickname, "al")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			s.cookie = c
		}
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPut, "/session/credential", CredentialRequest{AccessToken: "token", TokenType: "Bearer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *testServer) waitForIndexing(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/status", nil)
		return w.Code == http.StatusOK && decode(t, w)["indexing_done"] == true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthCheckHandler(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, s.cookie)
	first := s.cookie.Value

	w = s.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode(t, w)["session_id"])
	assert.Equal(t, 1, s.sessions.Len())
}

func TestSetCredentialHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedCode   ErrorCode
	}{
		{"valid credential", CredentialRequest{AccessToken: "token"}, http.StatusOK, ""},
		{"invalid JSON", "not json", http.StatusBadRequest, ErrorCodeInvalidJSON},
		{"missing token", CredentialRequest{}, http.StatusBadRequest, ErrorCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			w := s.do(t, http.MethodPut, "/session/credential", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, string(tt.expectedCode), decode(t, w)["code"])
			}
		})
	}
}

func TestFetchHandler_NotAuthenticated(t *testing.T) {
	s := setupTestServer(t, "a", "b")

	w := s.do(t, http.MethodPost, "/fetch", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(ErrorCodeNotAuthenticated), decode(t, w)["code"])
}

func TestLogoutClearsCredential(t *testing.T) {
	s := setupTestServer(t, "a")
	s.login(t)

	w := s.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, true, decode(t, w)["authenticated"])

	w = s.do(t, http.MethodDelete, "/session/credential", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, false, decode(t, w)["authenticated"])

	w = s.do(t, http.MethodPost, "/fetch", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFetchCalcReportFlow(t *testing.T) {
	s := setupTestServer(t, "dup one", "dup one", "unique text")
	s.login(t)

	w := s.do(t, http.MethodPost, "/fetch", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decode(t, w)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	run, _ := body["run"].(map[string]interface{})
	require.NotNil(t, run)
	assert.EqualValues(t, 3, run["fetched"])
	recordID, _ := run["record_id"].(string)
	require.NotEmpty(t, recordID)

	s.waitForIndexing(t)

	w = s.do(t, http.MethodGet, "/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/records/"+recordID+"/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(t, http.MethodPost, "/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report, _ := decode(t, w)["report"].(string)
	assert.True(t, strings.HasPrefix(report, "\nFor 2 tweets, 15 buckets: "), report)
	assert.Contains(t, report, "\n    [1 2]\n    dup one")

	// Re-indexing the same record is allowed once the first pass finished.
	w = s.do(t, http.MethodPost, "/calc", nil)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	s.waitForIndexing(t)

	w = s.do(t, http.MethodGet, "/jobs/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	metrics, _ := decode(t, w)["metrics"].(map[string]interface{})
	assert.EqualValues(t, 2, metrics["jobs_completed"])
}

func TestCalcHandler_SeededSQLiteRecord(t *testing.T) {
	st := testutil.CreateTestSQLiteStore(t)
	eng := testutil.CreateTestEngineWithStore(t, st)
	rec := testutil.SeedRecord(t, st, testutil.TestUser("alice"), "same words here", "same words here", "other")
	s := setupTestServerWithEngine(t, eng)

	w := s.do(t, http.MethodPost, "/calc", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID, _ := decode(t, w)["job_id"].(string)
	require.NotEmpty(t, jobID)

	job := testutil.WaitForJobCompletion(t, eng, jobID, testutil.DefaultJobPollingOptions())
	testutil.AssertJobCompleted(t, job, rec.ID)

	s.waitForIndexing(t)
	w = s.do(t, http.MethodPost, "/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, rec.ID, body["record_id"])
	assert.Contains(t, body["report"], "\n    [1 2]\n    same words here")
}

func TestCalcHandler_NoRecord(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/calc", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(ErrorCodeRecordNotFound), decode(t, w)["code"])
}

func TestReportHandler_GenericErrorMessage(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/report", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.GenericReportError, decode(t, w)["report"])
}

func TestGetJobHandler_NotFound(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(ErrorCodeJobNotFound), decode(t, w)["code"])
}

func TestListJobsHandler_InvalidStatus(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/records/rec-1/jobs?status=bogus", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodOptions, "/fetch", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSendServiceError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err    error
		status int
	}{
		{errors.ErrNotAuthenticated, http.StatusUnauthorized},
		{errors.NewValidationError("record_id", "empty"), http.StatusBadRequest},
		{errors.NewRecordNotFoundError("rec-1"), http.StatusNotFound},
		{errors.NewAlreadyIndexingError("rec-1"), http.StatusConflict},
		{errors.NewIndexingUnavailableError("capacity", nil), http.StatusServiceUnavailable},
		{fmt.Errorf("enqueue: %w", errors.ErrQueueFull), http.StatusServiceUnavailable},
		{errors.NewMatrixNotFoundError("m-1"), http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		SendServiceError(c, "test", tt.err)
		assert.Equal(t, tt.status, w.Code)
	}
}
