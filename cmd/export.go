package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/vault"
)

// Export writes the protected export text to a file, or stdout when no
// path is given.
func Export(ctx context.Context, path string) {
	store := MustUnlock(ctx)
	defer store.Lock()

	data, err := store.Export()
	if err != nil {
		HandleError(err)
	}

	if path == "" {
		fmt.Println(data)
		return
	}
	if err := os.WriteFile(path, []byte(data+"\n"), vault.FilePermSecure); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Exported to %s\n", path)
}
