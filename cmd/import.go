package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/credvault/credvault/internal/vault"
)

// Import merges entries from an export file into the vault. With
// replace the current entries are discarded first. With dryRun nothing
// is written; a redacted preview of the resulting change is printed
// instead.
func Import(ctx context.Context, path string, replace, dryRun bool) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "Usage: credvault import [--replace] [--dry-run] <file>")
		os.Exit(1)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	store := MustUnlock(ctx)
	defer store.Lock()

	if dryRun {
		previewImport(store, string(raw), replace)
		return
	}

	count, err := store.Import(string(raw), !replace)
	if err != nil {
		// "not recognized" only for payloads that failed to parse;
		// capacity and persistence failures keep their own messages.
		if errors.Is(err, vault.ErrImportValidation) {
			fmt.Fprintf(os.Stderr, "Error: import file not recognized\n")
			os.Exit(1)
		}
		HandleError(err)
	}
	fmt.Printf("✓ Imported %d entries\n", count)
}

// previewImport prints a unified-style diff of the entry listing before
// and after the import. Secrets never appear in the preview.
func previewImport(store *vault.Store, data string, replace bool) {
	imported, err := store.ParseImport(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: import file not recognized: %s\n", err)
		os.Exit(1)
	}
	current, err := store.Entries()
	if err != nil {
		HandleError(err)
	}

	merged := mergePreview(current, imported, replace)

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(listing(current), listing(merged))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	changed := false
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
			changed = true
		case diffmatchpatch.DiffDelete:
			prefix = "- "
			changed = true
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			if line != "" {
				fmt.Println(prefix + line)
			}
		}
	}
	if !changed {
		fmt.Println("No changes")
		return
	}
	fmt.Printf("\nDry run: %d entries would be imported\n", len(imported))
}

func mergePreview(current, imported []vault.Entry, replace bool) []vault.Entry {
	if replace {
		return imported
	}
	merged := make([]vault.Entry, len(current))
	copy(merged, current)
	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[e.ID] = i
	}
	for _, e := range imported {
		if i, ok := index[e.ID]; ok {
			merged[i] = e
		} else {
			index[e.ID] = len(merged)
			merged = append(merged, e)
		}
	}
	return merged
}

// listing renders entries one per line for diffing, redacting secrets.
func listing(entries []vault.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s  %s  %s  updated=%d", e.ID, e.Service, e.Username, e.UpdatedAt))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
