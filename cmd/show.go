package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/credvault/credvault/internal/vault"
)

// Show prints one entry, identified by id or service label. The secret
// is printed only with reveal set.
func Show(ctx context.Context, query string, reveal bool) {
	store := MustUnlock(ctx)
	defer store.Lock()

	entries, err := store.Entries()
	if err != nil {
		HandleError(err)
	}

	var found []vault.Entry
	for _, e := range entries {
		if e.ID == query || strings.EqualFold(e.Service, query) {
			found = append(found, e)
		}
	}

	switch len(found) {
	case 0:
		fmt.Fprintf(os.Stderr, "Error: no entry matches %q\n", query)
		os.Exit(1)
	case 1:
	default:
		fmt.Fprintf(os.Stderr, "Multiple entries match %q, use the id:\n", query)
		for _, e := range found {
			fmt.Fprintf(os.Stderr, "  %s  %s  %s\n", e.ID, e.Service, e.Username)
		}
		os.Exit(1)
	}

	e := found[0]
	fmt.Printf("Service:  %s\n", e.Service)
	fmt.Printf("Username: %s\n", e.Username)
	if reveal {
		fmt.Printf("Password: %s\n", e.Secret)
	} else {
		fmt.Printf("Password: ******** (use --reveal)\n")
	}
	if e.Notes != "" {
		fmt.Printf("Notes:    %s\n", e.Notes)
	}
	if len(e.Categories) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(e.Categories, ", "))
	}
	fmt.Printf("Updated:  %s\n", time.UnixMilli(e.UpdatedAt).Format(time.RFC3339))
}
