package cmd

import (
	"context"
	"fmt"
	"os"
)

// Rm deletes an entry by id
func Rm(ctx context.Context, id string) {
	if id == "" {
		fmt.Fprintln(os.Stderr, "Usage: credvault rm <id>")
		os.Exit(1)
	}

	store := MustUnlock(ctx)
	defer store.Lock()

	if err := store.DeleteEntry(id); err != nil {
		HandleError(err)
	}
	fmt.Printf("✓ Removed %s\n", id)
}
