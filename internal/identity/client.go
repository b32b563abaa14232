package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joescharf/board/internal/models"
)

// Provider is the sign-in backend a Client talks to. *Service implements it.
type Provider interface {
	SignUp(ctx context.Context, email, password string, p models.Persistence) (*models.Session, error)
	SignIn(ctx context.Context, email, password string, p models.Persistence) (*models.Session, error)
	SignOut(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

// TokenStore keeps a session token between runs of the client.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Client holds one caller's session and notifies subscribers on change.
//
// Subscribers are first notified once the client is ready, which happens on
// Restore or on the first sign-in/sign-out. Until then the auth state is
// unknown.
type Client struct {
	provider Provider
	tokens   TokenStore

	mu          sync.Mutex
	persistence models.Persistence
	session     *models.Session
	ready       bool
	listeners   []listener
	nextID      int
}

type listener struct {
	id int
	fn func(*models.User)
}

// Subscription is returned by Subscribe; Close stops notifications.
type Subscription struct {
	c    *Client
	id   int
	once sync.Once
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.c.unsubscribe(s.id) })
}

// NewClient creates a client. tokens may be nil for in-memory sessions.
func NewClient(p Provider, tokens TokenStore) *Client {
	return &Client{provider: p, tokens: tokens, persistence: models.PersistenceSession}
}

// SetPersistence chooses the scope used by the next sign-in or sign-up.
func (c *Client) SetPersistence(p models.Persistence) error {
	switch p {
	case models.PersistenceSession, models.PersistenceLocal:
	default:
		return fmt.Errorf("unknown persistence %q", p)
	}
	c.mu.Lock()
	c.persistence = p
	c.mu.Unlock()
	return nil
}

// Persistence returns the scope the next sign-in will use.
func (c *Client) Persistence() models.Persistence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistence
}

// Subscribe registers fn for auth-state changes. If the client is ready, fn
// is called immediately with the current user (nil when signed out).
func (c *Client) Subscribe(fn func(*models.User)) *Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	ready := c.ready
	user := userOf(c.session)
	c.mu.Unlock()

	if ready {
		fn(user)
	}
	return &Subscription{c: c, id: id}
}

func (c *Client) unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l.id == id {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Restore re-validates a saved token. A missing, expired or revoked token
// leaves the client signed out without returning an error.
func (c *Client) Restore(ctx context.Context) error {
	var sess *models.Session
	if c.tokens != nil {
		token, err := c.tokens.Load()
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		if token != "" {
			sess, err = c.provider.Resolve(ctx, token)
			switch {
			case errors.Is(err, ErrNotSignedIn), errors.Is(err, ErrSessionExpired):
				sess = nil
				_ = c.tokens.Clear()
			case err != nil:
				return err
			}
		}
	}
	c.set(sess)
	return nil
}

// SignIn signs in with the current persistence scope.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	sess, err := c.provider.SignIn(ctx, email, password, c.Persistence())
	if err != nil {
		return err
	}
	return c.adopt(sess)
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	sess, err := c.provider.SignUp(ctx, email, password, c.Persistence())
	if err != nil {
		return err
	}
	return c.adopt(sess)
}

func (c *Client) adopt(sess *models.Session) error {
	if c.tokens != nil {
		if err := c.tokens.Save(sess.Token); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	c.set(sess)
	return nil
}

// SignOut revokes the current session, if any.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		if err := c.provider.SignOut(ctx, sess.Token); err != nil {
			return err
		}
	}
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
	}
	c.set(nil)
	return nil
}

// Session returns the current session or nil.
func (c *Client) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CurrentUser returns the signed-in user or nil.
func (c *Client) CurrentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return userOf(c.session)
}

// RequireUser returns the signed-in user or ErrNotSignedIn.
func (c *Client) RequireUser() (*models.User, error) {
	if u := c.CurrentUser(); u != nil {
		return u, nil
	}
	return nil, ErrNotSignedIn
}

func (c *Client) set(sess *models.Session) {
	c.mu.Lock()
	c.session = sess
	c.ready = true
	user := userOf(sess)
	fns := make([]func(*models.User), len(c.listeners))
	for i, l := range c.listeners {
		fns[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func userOf(sess *models.Session) *models.User {
	if sess == nil {
		return nil
	}
	return &models.User{ID: sess.UserID, Email: sess.Email}
}
