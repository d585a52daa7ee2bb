package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/sendnodes-io/sendwallet-sub000/internal/app"
	"github.com/sendnodes-io/sendwallet-sub000/internal/config"
	"github.com/sendnodes-io/sendwallet-sub000/internal/session"
)

const defaultDataDir = ".keyring"

// passwordEnv supplies the vault password non-interactively.
const passwordEnv = "KEYRING_PASSWORD"

// getDataDir returns the data directory path.
// Priority: --dir flag > KEYRING_DIR env > ~/.keyring
func getDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if dir := os.Getenv("KEYRING_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDir
	}
	return filepath.Join(home, defaultDataDir)
}

// loadConfig builds the validated configuration from flags, env and file.
func loadConfig() (*config.Config, error) {
	cfg := config.FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr in verbose mode and discards otherwise.
func newLogger() *slog.Logger {
	if !isVerbose() {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openApp opens the vault storage without unlocking it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Backend == config.BackendBolt {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.BoltPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	logger := newLogger()
	slog.SetDefault(logger)
	return app.New(ctx, cfg, logger)
}

// openSession opens the vault and unlocks it, resuming a cached session when
// one is available. It tries KEYRING_PASSWORD first, then prompts.
func openSession(ctx context.Context) (*app.App, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, err
	}

	if restored, err := a.Session.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	} else if restored {
		a.Session.MarkOutsideActivity(ctx)
		return a, nil
	}

	state, err := a.Session.State(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if state == session.StateUninitialized {
		a.Close()
		return nil, errors.New("vault not initialized, run 'keyring unlock' first")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if err := unlock(ctx, a, password); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func unlock(ctx context.Context, a *app.App, password string) error {
	ok, err := a.Session.Unlock(ctx, password)
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrWrongPassword
	}
	return nil
}

// readPassword returns KEYRING_PASSWORD when set, otherwise prompts.
func readPassword(prompt string) (string, error) {
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return promptPassword(prompt)
}

// promptPassword reads a password from the terminal with echo disabled.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// promptPasswordConfirm prompts for a password twice and ensures they match.
func promptPasswordConfirm(prompt string) (string, error) {
	pass, err := promptPassword(prompt)
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

// readSecret returns value when given, otherwise prompts with echo disabled.
func readSecret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return promptPassword(prompt)
}
