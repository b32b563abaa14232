// Package identity provides email/password accounts and sign-in sessions.
//
// Service is the provider side: it owns accounts and issues session tokens.
// Client is the consumer side: it holds one caller's current session and
// notifies subscribers when that session changes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionExpired     = errors.New("session expired, sign in again")
	ErrNotSignedIn        = errors.New("not signed in")
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// Backend is the subset of store.Store the identity service needs.
type Backend interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateSession(ctx context.Context, sess *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Config controls session lifetimes and hashing cost.
type Config struct {
	SessionTTL  time.Duration // lifetime of PersistenceSession sign-ins
	RememberTTL time.Duration // lifetime of PersistenceLocal sign-ins
	BcryptCost  int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:  12 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		BcryptCost:  bcrypt.DefaultCost,
	}
}

// Service registers accounts and issues sessions.
type Service struct {
	backend Backend
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates an identity service. A nil logger uses slog.Default().
func NewService(b Backend, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = def.RememberTTL
	}
	return &Service{backend: b, cfg: cfg, log: logger, now: time.Now}
}

// normalizeEmail lower-cases and validates an address. Display names
// ("Ann <ann@example.com>") are rejected.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string, p models.Persistence) (*models.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	_, err = s.backend.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailInUse
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Email: email, PasswordHash: string(hash)}
	if err := s.backend.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("account created", "email", email)

	return s.issue(ctx, u, p)
}

// SignIn checks credentials and issues a new session.
func (s *Service) SignIn(ctx context.Context, email, password string, p models.Persistence) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.backend.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.Warn("sign-in rejected", "email", email)
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u, p)
}

func (s *Service) issue(ctx context.Context, u *models.User, p models.Persistence) (*models.Session, error) {
	ttl := s.cfg.SessionTTL
	if p == models.PersistenceLocal {
		ttl = s.cfg.RememberTTL
	} else {
		p = models.PersistenceSession
	}

	now := s.now().UTC()
	sess := &models.Session{
		Token:       uuid.NewString(),
		UserID:      u.ID,
		Email:       u.Email,
		Persistence: p,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.backend.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("signed in", "email", u.Email, "persistence", string(p))
	return sess, nil
}

// SignOut revokes a session token. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.backend.DeleteSession(ctx, token)
}

// Resolve returns the live session for token. Expired sessions are deleted.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrNotSignedIn
	}
	sess, err := s.backend.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		_ = s.backend.DeleteSession(ctx, token)
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// PurgeExpired deletes every expired session.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.backend.DeleteExpiredSessions(ctx, s.now())
}
