package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/gate"
	"github.com/joescharf/board/internal/identity"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	authSvc   *identity.Service
	authCli   *identity.Client

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Board - a shared kanban board for small teams",
	Long: `board tracks issues on a three-column kanban board (Open, In Progress, Done).
Sign in with an email and password, then add, move and delete issues
from the CLI, the web UI (board serve) or an MCP client (board mcp).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		// Reported errors were already alerted to the user.
		if !board.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/board/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "board"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "board"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default, rooted at dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "board.db"))
	viper.SetDefault("credentials_path", filepath.Join(dir, "credentials"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("auth.session_ttl", "12h")
	viper.SetDefault("auth.remember_ttl", "720h")
	viper.SetDefault("auth.bcrypt_cost", identity.DefaultConfig().BcryptCost)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store and identity are opened lazily so config/version run without a db.
}

// newLogger builds the slog logger described by log.level and log.format.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// rootRun handles `board` with no subcommand: pass the session gate, then
// show the board or a sign-in hint.
func rootRun() error {
	ctx := context.Background()
	client, err := getClient(ctx)
	if err != nil {
		return err
	}

	g := gate.New(client)
	g.Start()
	defer g.Close()

	view := g.View()
	switch view.Screen {
	case gate.ScreenBoard:
		return boardShowRun(ctx, board.Criteria{})
	case gate.ScreenSignIn:
		ui.Info("Not signed in. Run %s or %s.", output.Cyan("board login"), output.Cyan("board signup"))
		return nil
	default:
		ui.Info("Loading...")
		return nil
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// authConfig reads session lifetimes and hashing cost from viper.
func authConfig() identity.Config {
	cfg := identity.DefaultConfig()
	if d := viper.GetDuration("auth.session_ttl"); d > 0 {
		cfg.SessionTTL = d
	}
	if d := viper.GetDuration("auth.remember_ttl"); d > 0 {
		cfg.RememberTTL = d
	}
	if c := viper.GetInt("auth.bcrypt_cost"); c > 0 {
		cfg.BcryptCost = c
	}
	return cfg
}

// getAuthService returns the shared identity service.
func getAuthService(logger *slog.Logger) (*identity.Service, error) {
	if authSvc != nil {
		return authSvc, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	authSvc = identity.NewService(s, authConfig(), logger)
	return authSvc, nil
}

// getClient returns the CLI's identity client with the saved session restored.
func getClient(ctx context.Context) (*identity.Client, error) {
	if authCli != nil {
		return authCli, nil
	}
	logger := slog.New(slog.DiscardHandler)
	if verbose {
		logger = newLogger(ui.ErrOut)
	}
	svc, err := getAuthService(logger)
	if err != nil {
		return nil, err
	}

	credPath := viper.GetString("credentials_path")
	if err := os.MkdirAll(filepath.Dir(credPath), 0o700); err != nil {
		return nil, fmt.Errorf("create credentials directory: %w", err)
	}
	c := identity.NewClient(svc, identity.NewFileTokenStore(credPath))
	if err := c.Restore(ctx); err != nil {
		return nil, err
	}
	authCli = c
	return authCli, nil
}

// newController returns a board controller acting as the signed-in user,
// with the issue list loaded.
func newController(ctx context.Context) (*board.Controller, error) {
	client, err := getClient(ctx)
	if err != nil {
		return nil, err
	}
	user, err := client.RequireUser()
	if err != nil {
		return nil, fmt.Errorf("%w: run 'board login' first", err)
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	c := board.NewController(s, ui, user.Email)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
