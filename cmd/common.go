package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/storage"
	"github.com/credvault/credvault/internal/vault"
)

const (
	envPassword = "CREDVAULT_PASSWORD"
	envHome     = "CREDVAULT_HOME"
	envPremium  = "CREDVAULT_PREMIUM"
)

// Home returns the credvault data directory, creating it if needed.
func Home() (string, error) {
	dir := os.Getenv(envHome)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".credvault")
	}
	if err := os.MkdirAll(dir, vault.DirPermSecure); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return dir, nil
}

// OpenVault opens the vault store at the standard location.
func OpenVault() *vault.Store {
	dir, err := Home()
	if err != nil {
		HandleError(err)
	}
	opts := []vault.Option{}
	if os.Getenv(envPremium) != "" {
		opts = append(opts, vault.WithPremium(true))
	}
	return vault.Open(filepath.Join(dir, "vault.json"), opts...)
}

// OpenState opens the BBolt state database alongside the vault. The
// caller must Close it.
func OpenState() *storage.Store {
	dir, err := Home()
	if err != nil {
		HandleError(err)
	}
	st, err := storage.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		HandleError(err)
	}
	return st
}

// GetPasswordFromEnv returns the password from the environment, or nil.
func GetPasswordFromEnv() []byte {
	if p := os.Getenv(envPassword); p != "" {
		return []byte(p)
	}
	return nil
}

// ReadPassword prompts for a password without echoing it
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm prompts for a new password twice and verifies the
// two entries match.
func ReadPasswordConfirm() ([]byte, error) {
	password, err := ReadPassword("Enter new master password: ")
	if err != nil {
		return nil, err
	}
	confirm, err := ReadPassword("Confirm master password: ")
	if err != nil {
		crypto.ClearBytes(password)
		return nil, err
	}
	defer crypto.ClearBytes(confirm)

	if !crypto.ConstantTimeCompare(password, confirm) {
		crypto.ClearBytes(password)
		return nil, errors.New("passwords do not match")
	}
	if len(password) == 0 {
		return nil, errors.New("password must not be empty")
	}
	return password, nil
}

// GetPassword retrieves the master password from the environment or by
// prompting. The caller is responsible for crypto.ClearBytes on the
// returned slice.
func GetPassword(prompt string) ([]byte, error) {
	if password := GetPasswordFromEnv(); password != nil {
		return password, nil
	}
	return ReadPassword(prompt)
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// MustUnlock opens the vault and unlocks it with the environment or
// prompted password. An interrupt delivered while the prompt was open
// aborts before key derivation starts.
func MustUnlock(ctx context.Context) *vault.Store {
	store := OpenVault()
	password := GetPasswordOrExit("Enter master password: ")
	defer crypto.ClearBytes(password)

	if err := ctx.Err(); err != nil {
		HandleError(err)
	}
	if _, err := store.Unlock(password); err != nil {
		HandleError(err)
	}
	return store
}

// HandleError prints a consistent message for known errors and exits.
func HandleError(err error) {
	switch {
	case errors.Is(err, vault.ErrNotSetup):
		fmt.Fprintf(os.Stderr, "Error: vault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'credvault init' first\n")
	case errors.Is(err, vault.ErrAlreadySetup):
		fmt.Fprintf(os.Stderr, "Error: vault already initialized\n")
		fmt.Fprintf(os.Stderr, "Use 'credvault status' to see current state\n")
	case errors.Is(err, vault.ErrAuthentication):
		fmt.Fprintf(os.Stderr, "Error: %s\n", vault.UserMessage(err))
	case errors.Is(err, vault.ErrCapacity):
		fmt.Fprintf(os.Stderr, "Error: free tier limit of %d entries reached\n", vault.FreeTierLimit)
	case errors.Is(err, vault.ErrEntryNotFound):
		fmt.Fprintf(os.Stderr, "Error: no such entry\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
