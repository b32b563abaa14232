package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/models"
)

type recorder struct {
	calls []*models.User
}

func (r *recorder) notify(u *models.User) { r.calls = append(r.calls, u) }

func TestClient_NotReadyUntilRestore(t *testing.T) {
	svc, _ := newTestService(t)
	c := NewClient(svc, nil)

	rec := &recorder{}
	sub := c.Subscribe(rec.notify)
	defer sub.Close()
	assert.Empty(t, rec.calls, "no notification before the client is ready")

	require.NoError(t, c.Restore(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Nil(t, rec.calls[0])
}

func TestClient_SignInNotifiesAndSignOutClears(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := NewClient(svc, nil)

	rec := &recorder{}
	sub := c.Subscribe(rec.notify)
	defer sub.Close()

	require.NoError(t, c.SignUp(ctx, "ann@example.com", "secret1"))
	require.Len(t, rec.calls, 1)
	require.NotNil(t, rec.calls[0])
	assert.Equal(t, "ann@example.com", rec.calls[0].Email)

	u, err := c.RequireUser()
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)

	token := c.Session().Token
	require.NoError(t, c.SignOut(ctx))
	require.Len(t, rec.calls, 2)
	assert.Nil(t, rec.calls[1])

	_, err = svc.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNotSignedIn, "sign-out revokes the token")

	_, err = c.RequireUser()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestClient_SubscribeWhenReadyDeliversCurrentState(t *testing.T) {
	svc, _ := newTestService(t)
	c := NewClient(svc, nil)
	require.NoError(t, c.SignUp(context.Background(), "ann@example.com", "secret1"))

	rec := &recorder{}
	sub := c.Subscribe(rec.notify)
	defer sub.Close()
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "ann@example.com", rec.calls[0].Email)
}

func TestClient_UnsubscribeStopsNotifications(t *testing.T) {
	svc, _ := newTestService(t)
	c := NewClient(svc, nil)

	rec := &recorder{}
	sub := c.Subscribe(rec.notify)
	sub.Close()
	sub.Close()

	require.NoError(t, c.SignUp(context.Background(), "ann@example.com", "secret1"))
	assert.Empty(t, rec.calls)
}

func TestClient_FailedSignInKeepsState(t *testing.T) {
	svc, _ := newTestService(t)
	c := NewClient(svc, nil)

	rec := &recorder{}
	defer c.Subscribe(rec.notify).Close()

	err := c.SignIn(context.Background(), "ann@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, rec.calls)
	assert.Nil(t, c.CurrentUser())
}

func TestClient_SetPersistence(t *testing.T) {
	svc, _ := newTestService(t)
	c := NewClient(svc, nil)
	assert.Equal(t, models.PersistenceSession, c.Persistence())

	require.NoError(t, c.SetPersistence(models.PersistenceLocal))
	require.NoError(t, c.SignUp(context.Background(), "ann@example.com", "secret1"))
	assert.Equal(t, models.PersistenceLocal, c.Session().Persistence)

	assert.Error(t, c.SetPersistence("forever"))
}

func TestClient_RestoreFromTokenFile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials")

	first := NewClient(svc, NewFileTokenStore(path))
	require.NoError(t, first.SignUp(ctx, "ann@example.com", "secret1"))

	second := NewClient(svc, NewFileTokenStore(path))
	require.NoError(t, second.Restore(ctx))
	require.NotNil(t, second.CurrentUser())
	assert.Equal(t, "ann@example.com", second.CurrentUser().Email)

	// Revoked elsewhere: restore clears the stale token.
	require.NoError(t, svc.SignOut(ctx, second.Session().Token))
	third := NewClient(svc, NewFileTokenStore(path))
	require.NoError(t, third.Restore(ctx))
	assert.Nil(t, third.CurrentUser())

	token, err := NewFileTokenStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
