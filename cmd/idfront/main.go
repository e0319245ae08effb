// ABOUTME: CLI front end for the idfront identity and session engine
// ABOUTME: Drives login, 2FA, passkey management, and admin user commands

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/go-webauthn/webauthn/protocol"
	"golang.org/x/term"

	"github.com/2389/idfront/internal/api"
	"github.com/2389/idfront/internal/ceremony"
	"github.com/2389/idfront/internal/config"
	"github.com/2389/idfront/internal/session"
	"github.com/2389/idfront/internal/state"
	"github.com/2389/idfront/internal/tokens"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	app, err := buildApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cmd {
	case "register":
		err = app.cmdRegister(ctx)
	case "login":
		err = app.cmdLogin(ctx, args)
	case "login-passkey":
		err = app.cmdLoginPasskey(ctx, args)
	case "logout":
		err = app.cmdLogout(ctx)
	case "whoami":
		err = app.cmdWhoami(ctx)
	case "2fa":
		err = app.cmd2FA(ctx, args)
	case "passkeys":
		err = app.cmdPasskeys(ctx, args)
	case "forgot-password":
		err = app.cmdForgotPassword(ctx, args)
	case "reset-password":
		err = app.cmdResetPassword(ctx, args)
	case "users":
		err = app.cmdUsers(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("idfront - identity and access front end")
	fmt.Println()
	fmt.Println("Usage: idfront <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  register                     Create an account (email verification required)")
	fmt.Println("  login [identifier]           Log in with password (+ OTP when required)")
	fmt.Println("  login-passkey [identifier]   Log in with a passkey (needs a platform authenticator)")
	fmt.Println("  logout                       Clear the local session")
	fmt.Println("  whoami                       Show the current identity and token expiry")
	fmt.Println("  2fa setup|disable            Manage the one-time-code second factor")
	fmt.Println("  passkeys list|add|remove     Manage registered passkeys")
	fmt.Println("  forgot-password <email>      Request a password reset email")
	fmt.Println("  reset-password <token>       Set a new password with a reset token")
	fmt.Println("  users list|show|remove|passwd   Administer accounts (admin role)")
	fmt.Println()
	fmt.Println("Config file: $IDFRONT_CONFIG or ~/.config/idfront/config.yaml")
}

// app bundles the wired engine and its collaborators for command handlers.
type app struct {
	engine  *session.Engine
	client  *api.Client
	repo    *tokens.SQLiteRepository
	profile *Profile
}

// buildApp wires config, token repository, state store, API client, and
// engine. The CLI has no platform authenticator, so ceremonies that need one
// report as cancelled-by-platform.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	setupLogging(cfg.Logging)

	profile, err := loadProfile()
	if err != nil {
		return nil, err
	}
	if profile.ServerURL == "" {
		profile.ServerURL = cfg.Server.URL
	}

	repo, err := tokens.NewSQLiteRepository(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	client := api.New(profile.ServerURL, cfg.Server.Timeout, nil)
	engine := session.NewEngine(client, repo, state.New(nil), noAuthenticator{}, session.Options{
		PasskeySecondFactor: cfg.Auth.PasskeySecondFactor,
	})

	return &app{engine: engine, client: client, repo: repo, profile: profile}, nil
}

func (a *app) close() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// loadConfig resolves the config path from $IDFRONT_CONFIG or the user
// config directory.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("IDFRONT_CONFIG")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating user config directory: %w", err)
		}
		path = filepath.Join(dir, "idfront", "config.yaml")
	}
	return config.Load(path)
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// noAuthenticator stands in for the platform WebAuthn surface, which a
// terminal cannot provide. Ceremony attempts report cancellation.
type noAuthenticator struct{}

func (noAuthenticator) Create(context.Context, *protocol.CredentialCreation) (*ceremony.AttestationResult, error) {
	return nil, fmt.Errorf("%w: no platform authenticator available in a terminal", ceremony.ErrCancelled)
}

func (noAuthenticator) Get(context.Context, *protocol.CredentialAssertion) (*ceremony.AssertionResult, error) {
	return nil, fmt.Errorf("%w: no platform authenticator available in a terminal", ceremony.ErrCancelled)
}

func (a *app) cmdRegister(ctx context.Context) error {
	username, err := prompt("Username: ")
	if err != nil {
		return err
	}
	email, err := prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	if err := a.engine.Register(ctx, api.RegistrationProfile{
		Username: username,
		Email:    email,
		Password: password,
	}); err != nil {
		return err
	}

	color.Green("Account created. Check your email to verify it before logging in.")
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	identifier := a.profile.Identifier
	if len(args) > 0 {
		identifier = args[0]
	}
	if identifier == "" {
		var err error
		identifier, err = prompt("Username or email: ")
		if err != nil {
			return err
		}
	}

	password, err := promptSecret("Password: ")
	if err != nil {
		return err
	}

	user, err := a.engine.Login(ctx, identifier, password, "")
	var sfr *api.SecondFactorRequiredError
	if errors.As(err, &sfr) {
		otp, perr := prompt("One-time code: ")
		if perr != nil {
			return perr
		}
		user, err = a.engine.Login(ctx, sfr.Identifier, password, otp)
	}
	if err != nil {
		return err
	}

	a.profile.Identifier = identifier
	if serr := saveProfile(a.profile); serr != nil {
		slog.Warn("failed to save profile", "error", serr)
	}

	color.Green("Logged in as %s", user.Username)
	return nil
}

func (a *app) cmdLoginPasskey(ctx context.Context, args []string) error {
	identifier := a.profile.Identifier
	if len(args) > 0 {
		identifier = args[0]
	}
	if identifier == "" {
		var err error
		identifier, err = prompt("Username or email: ")
		if err != nil {
			return err
		}
	}

	user, err := a.engine.LoginWithPasskey(ctx, identifier)
	if err != nil {
		return err
	}

	a.profile.Identifier = identifier
	if serr := saveProfile(a.profile); serr != nil {
		slog.Warn("failed to save profile", "error", serr)
	}

	color.Green("Logged in as %s", user.Username)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.engine.Logout(ctx)
	fmt.Println("Logged out.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("session expired or revoked, log in again: %w", err)
	}

	user := a.engine.Current()
	if user == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", user.ID)
	fmt.Fprintf(w, "Username:\t%s\n", user.Username)
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Roles:\t%s\n", strings.Join(user.Roles, ", "))
	fmt.Fprintf(w, "Verified:\t%v\n", user.Verified)
	fmt.Fprintf(w, "Second factor:\t%v\n", user.SecondFactorEnabled)
	fmt.Fprintf(w, "Passkeys:\t%d\n", len(user.Credentials))

	if token, err := a.repo.Load(ctx); err == nil {
		if claims, err := tokens.Inspect(token); err == nil && !claims.ExpiresAt.IsZero() {
			fmt.Fprintf(w, "Token expires:\t%s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	return w.Flush()
}

func (a *app) cmd2FA(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: idfront 2fa setup|disable")
	}

	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "setup":
		secret, err := a.engine.GenerateSecondFactorSecret(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Secret: %s\n", secret.Secret)
		fmt.Printf("Enrollment URI: %s\n", secret.OTPAuthURL)
		fmt.Println("Scan the URI with your authenticator app, then enter a code to confirm.")

		code, err := prompt("One-time code: ")
		if err != nil {
			return err
		}
		if err := a.engine.VerifyAndEnableSecondFactor(ctx, code); err != nil {
			return err
		}
		color.Green("Second factor enabled.")
		return nil
	case "disable":
		if err := a.engine.DisableSecondFactor(ctx); err != nil {
			return err
		}
		color.Green("Second factor disabled.")
		return nil
	default:
		return fmt.Errorf("unknown 2fa subcommand: %s", args[0])
	}
}

func (a *app) cmdPasskeys(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: idfront passkeys list|add [label]|remove <credential-id>")
	}

	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	user := a.engine.Current()
	if user == nil {
		return session.ErrNotAuthenticated
	}

	switch args[0] {
	case "list":
		if len(user.Credentials) == 0 {
			fmt.Println("No passkeys registered.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tCREATED\tLAST USED")
		for _, c := range user.Credentials {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				c.ID, c.Label, formatTime(c.CreatedAt), formatTime(c.LastUsedAt))
		}
		return w.Flush()
	case "add":
		label := ""
		if len(args) > 1 {
			label = args[1]
		}
		if err := a.engine.RegisterPasskey(ctx, label); err != nil {
			return err
		}
		color.Green("Passkey registered.")
		return nil
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: idfront passkeys remove <credential-id>")
		}
		if err := a.engine.DeletePasskey(ctx, args[1]); err != nil {
			return err
		}
		color.Green("Passkey removed.")
		return nil
	default:
		return fmt.Errorf("unknown passkeys subcommand: %s", args[0])
	}
}

func (a *app) cmdForgotPassword(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: idfront forgot-password <email>")
	}
	if err := a.engine.ForgotPassword(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("If the address is registered, a reset email is on its way.")
	return nil
}

func (a *app) cmdResetPassword(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: idfront reset-password <reset-token>")
	}
	password, err := promptSecret("New password: ")
	if err != nil {
		return err
	}
	if err := a.engine.ResetPassword(ctx, args[0], password); err != nil {
		return err
	}
	color.Green("Password updated. You can log in now.")
	return nil
}

func (a *app) cmdUsers(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: idfront users list|show <id>|remove <id>|passwd <id>")
	}

	token, err := a.repo.Load(ctx)
	if err != nil {
		return session.ErrNotAuthenticated
	}

	switch args[0] {
	case "list":
		users, err := a.client.ListUsers(ctx, token)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLES\tVERIFIED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
				u.ID, u.Username, u.Email, strings.Join(u.Roles, ","), u.Verified)
		}
		return w.Flush()
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: idfront users show <id>")
		}
		u, err := a.client.GetUser(ctx, token, args[1])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", u.ID)
		fmt.Fprintf(w, "Username:\t%s\n", u.Username)
		fmt.Fprintf(w, "Email:\t%s\n", u.Email)
		fmt.Fprintf(w, "Roles:\t%s\n", strings.Join(u.Roles, ", "))
		fmt.Fprintf(w, "Permissions:\t%s\n", strings.Join(u.Permissions, ", "))
		fmt.Fprintf(w, "Verified:\t%v\n", u.Verified)
		return w.Flush()
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: idfront users remove <id>")
		}
		if err := a.client.DeleteUser(ctx, token, args[1]); err != nil {
			return err
		}
		color.Green("User removed.")
		return nil
	case "passwd":
		if len(args) < 2 {
			return fmt.Errorf("usage: idfront users passwd <id>")
		}
		password, err := promptSecret("New password: ")
		if err != nil {
			return err
		}
		if err := a.client.ChangePassword(ctx, token, args[1], api.PasswordChange{NewPassword: password}); err != nil {
			return err
		}
		color.Green("Password changed.")
		return nil
	default:
		return fmt.Errorf("unknown users subcommand: %s", args[0])
	}
}

// prompt reads one line of input with the given label.
func prompt(label string) (string, error) {
	fmt.Print(label)
	var value string
	if _, err := fmt.Scanln(&value); err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// promptSecret reads input without echoing it to the terminal.
func promptSecret(label string) (string, error) {
	fmt.Print(label)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
