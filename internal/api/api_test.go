package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/identity"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

func setupTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	cfg := identity.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	srv := NewServer(s, identity.NewService(s, cfg, nil), nil)

	return srv.Router(), s
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// signUp registers ann@example.com and returns her token.
func signUp(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, "POST", "/api/v1/auth/signup", "", `{"email":"ann@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createIssue(t *testing.T, h http.Handler, token, title string) *models.Issue {
	t.Helper()
	body, _ := json.Marshal(createIssueRequest{Title: title, Description: title + " details", Confirm: true})
	w := do(t, h, "POST", "/api/v1/issues", token, string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	return &issue
}

// --- Auth ---

func TestSignUp_SetsSessionCookie(t *testing.T) {
	h, _ := setupTestServer(t)

	w := do(t, h, "POST", "/api/v1/auth/signup", "", `{"email":"ann@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Zero(t, cookies[0].MaxAge, "session scope is a browser-session cookie")
}

func TestLogin_RememberSetsMaxAge(t *testing.T) {
	h, _ := setupTestServer(t)
	signUp(t, h)

	w := do(t, h, "POST", "/api/v1/auth/login", "", `{"email":"ann@example.com","password":"secret1","remember":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Greater(t, cookies[0].MaxAge, 0)
}

func TestAuthErrors(t *testing.T) {
	h, _ := setupTestServer(t)
	signUp(t, h)

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"bad email", "/api/v1/auth/signup", `{"email":"nope","password":"secret1"}`, http.StatusBadRequest},
		{"weak password", "/api/v1/auth/signup", `{"email":"bob@example.com","password":"123"}`, http.StatusBadRequest},
		{"email in use", "/api/v1/auth/signup", `{"email":"ann@example.com","password":"secret1"}`, http.StatusConflict},
		{"wrong password", "/api/v1/auth/login", `{"email":"ann@example.com","password":"wrong!!"}`, http.StatusUnauthorized},
		{"unknown user", "/api/v1/auth/login", `{"email":"zed@example.com","password":"secret1"}`, http.StatusUnauthorized},
		{"bad json", "/api/v1/auth/login", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", tt.path, "", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSessionAndLogout(t *testing.T) {
	h, _ := setupTestServer(t)
	token := signUp(t, h)

	w := do(t, h, "GET", "/api/v1/auth/session", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ann@example.com")

	w = do(t, h, "POST", "/api/v1/auth/logout", token, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/api/v1/auth/session", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCookieAuth(t *testing.T) {
	h, _ := setupTestServer(t)
	token := signUp(t, h)

	req := httptest.NewRequest("GET", "/api/v1/issues", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssuesRequireSession(t *testing.T) {
	h, _ := setupTestServer(t)
	for _, path := range []string{"/api/v1/issues", "/api/v1/board"} {
		w := do(t, h, "GET", path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := do(t, h, "GET", "/api/v1/issues", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Issues ---

func TestCreateIssue_API(t *testing.T) {
	h, _ := setupTestServer(t)
	token := signUp(t, h)

	w := do(t, h, "POST", "/api/v1/issues", token, `{"title":"Login bug","description":"broken","priority":"high"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.IssueStatusOpen, created.Status)
	assert.Equal(t, models.IssuePriorityHigh, created.Priority)
	assert.Equal(t, "ann@example.com", created.CreatedBy)
	assert.Equal(t, "ann@example.com", created.AssignedTo)
}

func TestCreateIssue_Validation(t *testing.T) {
	h, s := setupTestServer(t)
	token := signUp(t, h)

	w := do(t, h, "POST", "/api/v1/issues", token, `{"title":"","description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Fill all fields")

	w = do(t, h, "POST", "/api/v1/issues", token, `{"title":"t","description":"d","priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	issues, err := s.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestCreateIssue_SimilarNeedsConfirm(t *testing.T) {
	h, s := setupTestServer(t)
	token := signUp(t, h)
	createIssue(t, h, token, "login")

	w := do(t, h, "POST", "/api/v1/issues", token, `{"title":"Login bug","description":"d"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), board.ConfirmSimilar)
	assert.Contains(t, w.Body.String(), "similar")

	issues, err := s.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	w = do(t, h, "POST", "/api/v1/issues", token, `{"title":"Login bug","description":"d","confirm":true}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListIssues_Filters(t *testing.T) {
	h, _ := setupTestServer(t)
	token := signUp(t, h)
	a := createIssue(t, h, token, "Alpha")
	createIssue(t, h, token, "Beta")

	w := do(t, h, "PUT", "/api/v1/issues/"+a.ID+"/status", token, `{"status":"In Progress"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var issues []*models.Issue
	w = do(t, h, "GET", "/api/v1/issues", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	require.Len(t, issues, 2)
	assert.Equal(t, "Beta", issues[0].Title, "newest first")

	w = do(t, h, "GET", "/api/v1/issues?status=In%20Progress", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "Alpha", issues[0].Title)

	w = do(t, h, "GET", "/api/v1/issues?search=zzz&priority=All", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	assert.Empty(t, issues)
}

func TestGetBoard(t *testing.T) {
	h, _ := setupTestServer(t)
	token := signUp(t, h)
	createIssue(t, h, token, "Alpha")

	w := do(t, h, "GET", "/api/v1/board", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var cols []board.Column
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cols))
	require.Len(t, cols, 3)
	assert.Equal(t, "Open", cols[0].Title)
	assert.Equal(t, 1, cols[0].Count)
	assert.True(t, cols[2].Deletable)
}

func TestSetIssueStatus(t *testing.T) {
	h, s := setupTestServer(t)
	token := signUp(t, h)
	issue := createIssue(t, h, token, "Alpha")
	path := "/api/v1/issues/" + issue.ID + "/status"

	w := do(t, h, "PUT", path, token, `{"status":"Done"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Move issue to In Progress first")

	got, err := s.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusOpen, got.Status)

	w = do(t, h, "PUT", path, token, `{"status":"in_progress"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, "PUT", path, token, `{"status":"Done"}`)
	require.Equal(t, http.StatusOK, w.Code)

	got, err = s.GetIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusDone, got.Status)

	w = do(t, h, "PUT", path, token, `{"status":"Closed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "PUT", "/api/v1/issues/missing/status", token, `{"status":"Open"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteIssue(t *testing.T) {
	h, s := setupTestServer(t)
	token := signUp(t, h)
	issue := createIssue(t, h, token, "Alpha")
	path := "/api/v1/issues/" + issue.ID

	w := do(t, h, "DELETE", path+"?confirm=true", token, "")
	assert.Equal(t, http.StatusConflict, w.Code, "open issues cannot be deleted")

	ctx := context.Background()
	require.NoError(t, s.SetIssueStatus(ctx, issue.ID, models.IssueStatusDone))

	w = do(t, h, "DELETE", path, token, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = do(t, h, "DELETE", path+"?confirm=true", token, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := s.GetIssue(ctx, issue.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	w = do(t, h, "DELETE", path+"?confirm=true", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := setupTestServer(t)
	w := do(t, h, "OPTIONS", "/api/v1/issues", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
