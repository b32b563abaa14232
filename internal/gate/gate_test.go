package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/identity"
	"github.com/joescharf/board/internal/models"
)

// fakeProvider accepts any password equal to "secret1" for known emails.
type fakeProvider struct {
	mu       sync.Mutex
	users    map[string]bool
	sessions map[string]*models.Session
	scopes   []models.Persistence
}

func newFakeProvider(emails ...string) *fakeProvider {
	p := &fakeProvider{users: map[string]bool{}, sessions: map[string]*models.Session{}}
	for _, e := range emails {
		p.users[e] = true
	}
	return p
}

func (p *fakeProvider) issue(email string, scope models.Persistence) *models.Session {
	s := &models.Session{
		Token:       "tok-" + email,
		UserID:      "u-" + email,
		Email:       email,
		Persistence: scope,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	p.sessions[s.Token] = s
	p.scopes = append(p.scopes, scope)
	return s
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string, scope models.Persistence) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.users[email] {
		return nil, identity.ErrEmailInUse
	}
	if len(password) < identity.MinPasswordLength {
		return nil, identity.ErrWeakPassword
	}
	p.users[email] = true
	return p.issue(email, scope), nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string, scope models.Persistence) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.users[email] || password != "secret1" {
		return nil, identity.ErrInvalidCredentials
	}
	return p.issue(email, scope), nil
}

func (p *fakeProvider) SignOut(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
	return nil
}

func (p *fakeProvider) Resolve(_ context.Context, token string) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[token]; ok {
		return s, nil
	}
	return nil, identity.ErrNotSignedIn
}

func TestGate_LoadingUntilFirstNotification(t *testing.T) {
	client := identity.NewClient(newFakeProvider(), nil)
	g := New(client)
	g.Start()
	defer g.Close()

	assert.Equal(t, ScreenLoading, g.View().Screen, "a client that never reports keeps the gate loading")

	require.NoError(t, client.Restore(context.Background()))
	v := g.View()
	assert.Equal(t, ScreenSignIn, v.Screen)
	assert.Nil(t, v.User)
	assert.Empty(t, v.Identity())
}

func TestGate_SignInShowsBoard(t *testing.T) {
	ctx := context.Background()
	client := identity.NewClient(newFakeProvider("ann@example.com"), nil)
	require.NoError(t, client.Restore(ctx))

	g := New(client)
	g.Start()
	defer g.Close()
	assert.Equal(t, ScreenSignIn, g.View().Screen, "ready client notifies on subscribe")

	require.NoError(t, client.SignIn(ctx, "ann@example.com", "secret1"))
	v := g.View()
	assert.Equal(t, ScreenBoard, v.Screen)
	require.NotNil(t, v.User)
	assert.Equal(t, "ann@example.com", v.Identity())

	require.NoError(t, g.SignOut(ctx))
	assert.Equal(t, ScreenSignIn, g.View().Screen)
}

func TestGate_LoadingClearedOnce(t *testing.T) {
	ctx := context.Background()
	client := identity.NewClient(newFakeProvider("ann@example.com"), nil)
	g := New(client)
	g.Start()
	defer g.Close()

	// Repeated notifications must not close the channel twice.
	require.NoError(t, client.Restore(ctx))
	require.NoError(t, client.SignIn(ctx, "ann@example.com", "secret1"))
	require.NoError(t, client.SignOut(ctx))

	v, err := g.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScreenSignIn, v.Screen)
}

func TestGate_WaitHonorsContext(t *testing.T) {
	g := New(identity.NewClient(newFakeProvider(), nil))
	g.Start()
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	v, err := g.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, ScreenLoading, v.Screen)
}

func TestGate_CloseStopsUpdates(t *testing.T) {
	ctx := context.Background()
	client := identity.NewClient(newFakeProvider("ann@example.com"), nil)
	require.NoError(t, client.Restore(ctx))

	g := New(client)
	g.Start()
	g.Close()
	g.Close()

	require.NoError(t, client.SignIn(ctx, "ann@example.com", "secret1"))
	assert.Equal(t, ScreenSignIn, g.View().Screen)
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "loading", ScreenLoading.String())
	assert.Equal(t, "sign-in", ScreenSignIn.String())
	assert.Equal(t, "board", ScreenBoard.String())
}
