package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/identity"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

// CookieName holds the session token for browser clients.
const CookieName = "board_session"

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	auth   *identity.Service
	logger *slog.Logger
}

// NewServer creates a new API server. A nil logger discards request logs.
func NewServer(s store.Store, auth *identity.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: s, auth: auth, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/signup", s.signUp)
	mux.HandleFunc("POST /api/v1/auth/login", s.login)
	mux.HandleFunc("POST /api/v1/auth/logout", s.logout)
	mux.HandleFunc("GET /api/v1/auth/session", s.currentSession)

	mux.Handle("GET /api/v1/issues", s.requireSession(s.listIssues))
	mux.Handle("POST /api/v1/issues", s.requireSession(s.createIssue))
	mux.Handle("GET /api/v1/issues/{id}", s.requireSession(s.getIssue))
	mux.Handle("PUT /api/v1/issues/{id}/status", s.requireSession(s.setIssueStatus))
	mux.Handle("DELETE /api/v1/issues/{id}", s.requireSession(s.deleteIssue))

	mux.Handle("GET /api/v1/board", s.requireSession(s.getBoard))

	return corsMiddleware(s.logRequests(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Auth ---

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type sessionResponse struct {
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (req credentialsRequest) persistence() models.Persistence {
	if req.Remember {
		return models.PersistenceLocal
	}
	return models.PersistenceSession
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	sess, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.persistence())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionResponse{Email: sess.Email, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password, req.persistence())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{Email: sess.Email, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFrom(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Resolve(r.Context(), tokenFrom(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Email: sess.Email, ExpiresAt: sess.ExpiresAt})
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrEmailInUse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrNotSignedIn),
		errors.Is(err, identity.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// setSessionCookie writes the token cookie. Session-scoped sign-ins get a
// browser-session cookie; remembered ones carry an explicit lifetime.
func setSessionCookie(w http.ResponseWriter, sess *models.Session) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.Persistence == models.PersistenceLocal {
		c.Expires = sess.ExpiresAt
		c.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, c)
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type ctxKey struct{}

func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.auth.Resolve(r.Context(), tokenFrom(r))
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(ctxKey{}).(*models.Session)
	return sess
}

// --- Issues ---

func criteriaFrom(r *http.Request) board.Criteria {
	q := r.URL.Query()
	return board.Criteria{
		Search:   q.Get("search"),
		Priority: q.Get("priority"),
		Status:   q.Get("status"),
	}
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, board.Filter(issues, criteriaFrom(r)))
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, board.Group(board.Filter(issues, criteriaFrom(r))))
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type createIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Confirm     bool   `json:"confirm"`
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := board.ValidateNew(req.Title, req.Description); err != nil {
		writeError(w, http.StatusBadRequest, board.Message(err))
		return
	}

	priority := models.IssuePriorityLow
	if req.Priority != "" {
		p, err := models.ParseIssuePriority(req.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		priority = p
	}

	if !req.Confirm {
		existing, err := s.store.ListIssues(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if similar := board.FindSimilar(existing, req.Title); similar != nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   board.ConfirmSimilar,
				"similar": similar,
			})
			return
		}
	}

	email := sessionFrom(r.Context()).Email
	issue := &models.Issue{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Status:      models.IssueStatusOpen,
		CreatedBy:   email,
		AssignedTo:  email,
	}
	if err := s.store.CreateIssue(r.Context(), issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("issue created", "id", issue.ID, "by", email)
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) setIssueStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	status, err := models.ParseIssueStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := board.ValidateTransition(issue.Status, status); err != nil {
		writeError(w, http.StatusUnprocessableEntity, board.Message(err))
		return
	}
	if err := s.store.SetIssueStatus(r.Context(), id, status); err != nil {
		writeStoreError(w, err)
		return
	}
	issue.Status = status
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := board.CanDelete(issue); err != nil {
		writeError(w, http.StatusConflict, board.Message(err))
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, board.ConfirmDelete)
		return
	}
	if err := s.store.DeleteIssue(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("issue deleted", "id", id, "by", sessionFrom(r.Context()).Email)
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
