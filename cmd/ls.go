package cmd

import (
	"context"
	"fmt"
	"strings"
)

// Ls lists stored entries without revealing secrets
func Ls(ctx context.Context, category string) {
	store := MustUnlock(ctx)
	defer store.Lock()

	entries, err := store.Entries()
	if err != nil {
		HandleError(err)
	}

	shown := 0
	for _, e := range entries {
		if category != "" && !hasCategory(e.Categories, category) {
			continue
		}
		line := e.Service
		if e.Username != "" {
			line += "  " + e.Username
		}
		if len(e.Categories) > 0 {
			line += "  [" + strings.Join(e.Categories, ", ") + "]"
		}
		fmt.Printf("  %s  %s\n", e.ID, line)
		shown++
	}

	if shown == 0 {
		fmt.Println("No entries")
		return
	}
	fmt.Printf("%d entries\n", shown)
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}
