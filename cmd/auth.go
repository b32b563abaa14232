package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/gate"
	"github.com/joescharf/board/internal/output"
)

var (
	authEmail        string
	authRemember     bool
	authShowPassword bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return credentialsRun(cmd.Context(), true)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in with email and password. The session lasts auth.session_ttl
(default 12h); with --remember it lasts auth.remember_ttl (default 30 days).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return credentialsRun(cmd.Context(), false)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun(cmd.Context())
	},
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, loginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Email address (prompted when empty)")
		c.Flags().BoolVar(&authRemember, "remember", false, "Keep the session across restarts")
		c.Flags().BoolVar(&authShowPassword, "show-password", false, "Echo the password while typing")
	}

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// readPassword reads the password hidden when stdin is a terminal, unless
// the form asks for it to be shown.
func readPassword(form *gate.CredentialForm) (string, error) {
	fd := int(os.Stdin.Fd())
	if form.ShowPassword || ui.In != os.Stdin || !term.IsTerminal(fd) {
		return ui.ReadLine("Password: ")
	}
	fmt.Fprint(ui.ErrOut, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(ui.ErrOut)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func credentialsRun(ctx context.Context, create bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := getClient(ctx)
	if err != nil {
		return err
	}

	form := gate.NewCredentialForm(client, ui)
	form.Email = authEmail
	form.Remember = authRemember
	if authShowPassword {
		form.Toggle()
	}

	if form.Email == "" {
		if form.Email, err = ui.ReadLine("Email: "); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	if form.Password, err = readPassword(form); err != nil {
		return err
	}
	ui.VerboseLog("Credentials: %s / %s (remember=%v)", form.Email, form.DisplayPassword(), form.Remember)

	if dryRun {
		action := "sign in"
		if create {
			action = "create account"
		}
		ui.DryRunMsg("Would %s for %s", action, form.Email)
		return nil
	}

	if create {
		err = form.SignUp(ctx)
	} else {
		err = form.Login(ctx)
	}
	if err != nil {
		return board.MarkReported(err)
	}

	sess := client.Session()
	ui.Success("Signed in as %s (until %s)", output.Cyan(sess.Email), sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func logoutRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := getClient(ctx)
	if err != nil {
		return err
	}

	g := gate.New(client)
	g.Start()
	defer g.Close()

	if g.View().Screen != gate.ScreenBoard {
		ui.Info("Not signed in.")
		return nil
	}
	email := g.View().Identity()
	if dryRun {
		ui.DryRunMsg("Would sign out %s", email)
		return nil
	}
	if err := g.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	ui.Success("Signed out %s", email)
	return nil
}

func whoamiRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	sess := client.Session()
	if sess == nil {
		ui.Info("Not signed in.")
		return nil
	}
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(sess.Email))
	fmt.Fprintf(ui.Out, "  Session:  %s\n", sess.Persistence)
	fmt.Fprintf(ui.Out, "  Expires:  %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
