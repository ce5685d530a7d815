package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/vault"
)

// Add stores a new credential entry
func Add(ctx context.Context, service, username string, categories []string, notes string) {
	if service == "" {
		fmt.Fprintln(os.Stderr, "Error: --service is required")
		os.Exit(1)
	}

	store := MustUnlock(ctx)
	defer store.Lock()

	secret, err := ReadPassword(fmt.Sprintf("Password for %s: ", service))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(secret)

	entry := vault.Entry{
		Service:    service,
		Username:   username,
		Secret:     string(secret),
		Notes:      notes,
		Categories: categories,
	}
	saved, err := store.AddEntry(entry)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Added %s (%s)\n", saved.Service, saved.ID)
}
