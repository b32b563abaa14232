package gate

import (
	"context"
	"strings"

	"github.com/joescharf/board/internal/models"
)

// Authenticator is the part of identity.Client the sign-in form drives.
type Authenticator interface {
	SetPersistence(p models.Persistence) error
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
}

// Alerter shows a blocking message.
type Alerter interface {
	Alert(msg string)
}

// CredentialForm is the email/password form shown on the sign-in screen.
// Email and password are sent as typed; the identity service validates them.
type CredentialForm struct {
	Email        string
	Password     string
	ShowPassword bool
	// Remember keeps the session across restarts (local scope).
	Remember bool

	auth  Authenticator
	alert Alerter
}

// NewCredentialForm creates an empty form with the password hidden.
func NewCredentialForm(auth Authenticator, alert Alerter) *CredentialForm {
	return &CredentialForm{auth: auth, alert: alert}
}

// Toggle flips password visibility.
func (f *CredentialForm) Toggle() { f.ShowPassword = !f.ShowPassword }

// DisplayPassword returns the password as the field renders it.
func (f *CredentialForm) DisplayPassword() string {
	if f.ShowPassword {
		return f.Password
	}
	return strings.Repeat("•", len([]rune(f.Password)))
}

// Login signs in with the form's credentials.
func (f *CredentialForm) Login(ctx context.Context) error {
	return f.submit(ctx, f.auth.SignIn)
}

// SignUp creates an account with the form's credentials.
func (f *CredentialForm) SignUp(ctx context.Context) error {
	return f.submit(ctx, f.auth.SignUp)
}

func (f *CredentialForm) submit(ctx context.Context, fn func(context.Context, string, string) error) error {
	scope := models.PersistenceSession
	if f.Remember {
		scope = models.PersistenceLocal
	}
	if err := f.auth.SetPersistence(scope); err != nil {
		f.alert.Alert(err.Error())
		return err
	}
	if err := fn(ctx, f.Email, f.Password); err != nil {
		f.alert.Alert(err.Error())
		return err
	}
	return nil
}
