// Package gate decides what a caller sees based on auth state: a loading
// screen until the identity client reports, then the sign-in form or the
// board.
package gate

import (
	"context"
	"sync"

	"github.com/joescharf/board/internal/identity"
	"github.com/joescharf/board/internal/models"
)

// Screen is what the gate shows.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenSignIn
	ScreenBoard
)

func (s Screen) String() string {
	switch s {
	case ScreenLoading:
		return "loading"
	case ScreenSignIn:
		return "sign-in"
	case ScreenBoard:
		return "board"
	}
	return "unknown"
}

// Subscriber is the part of identity.Client the gate needs.
type Subscriber interface {
	Subscribe(fn func(*models.User)) *identity.Subscription
	SignOut(ctx context.Context) error
}

// View is a snapshot of the gate.
type View struct {
	Screen Screen
	User   *models.User
}

// Identity is the acting email for the board, or "" when signed out.
func (v View) Identity() string {
	if v.User == nil {
		return ""
	}
	return v.User.Email
}

// Gate tracks the loading flag and the current user.
type Gate struct {
	sub Subscriber

	mu      sync.Mutex
	loading bool
	user    *models.User
	subs    *identity.Subscription
	changed chan struct{}
}

// New creates a gate in the loading state. Call Start to subscribe.
func New(sub Subscriber) *Gate {
	return &Gate{sub: sub, loading: true, changed: make(chan struct{})}
}

// Start subscribes to auth-state changes. Calling it twice is a no-op.
func (g *Gate) Start() {
	g.mu.Lock()
	started := g.subs != nil
	g.mu.Unlock()
	if started {
		return
	}

	s := g.sub.Subscribe(g.notify)

	g.mu.Lock()
	g.subs = s
	g.mu.Unlock()
}

func (g *Gate) notify(u *models.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = u
	if g.loading {
		g.loading = false
		close(g.changed)
	}
}

// Close ends the subscription. Later auth changes are ignored.
func (g *Gate) Close() {
	g.mu.Lock()
	s := g.subs
	g.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// View returns the current screen and user.
func (g *Gate) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.loading:
		return View{Screen: ScreenLoading}
	case g.user == nil:
		return View{Screen: ScreenSignIn}
	default:
		return View{Screen: ScreenBoard, User: g.user}
	}
}

// Wait blocks until the first notification or ctx is done.
func (g *Gate) Wait(ctx context.Context) (View, error) {
	select {
	case <-g.changed:
		return g.View(), nil
	case <-ctx.Done():
		return g.View(), ctx.Err()
	}
}

// SignOut signs the user out. The screen changes through the subscription.
func (g *Gate) SignOut(ctx context.Context) error {
	return g.sub.SignOut(ctx)
}
