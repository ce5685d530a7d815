package cmd

import (
	"context"
	"fmt"
)

// Unlock verifies the master password and reports the entry count.
// Useful as a quick credential check in scripts together with the
// CREDVAULT_PASSWORD environment variable.
func Unlock(ctx context.Context) {
	store := MustUnlock(ctx)
	defer store.Lock()

	entries, err := store.Entries()
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("✓ Unlocked (%d entries)\n", len(entries))
}
