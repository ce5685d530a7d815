package vault

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry is a single stored credential. Secret is plaintext only while the
// vault is unlocked; at rest the whole entry list lives inside the
// encrypted blob.
type Entry struct {
	ID         string   `json:"id"`
	Service    string   `json:"service"`
	Username   string   `json:"username"`
	Secret     string   `json:"password"`
	Notes      string   `json:"notes,omitempty"`
	Categories []string `json:"categories,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// NewEntry creates an entry with a fresh unique id and timestamps.
func NewEntry(service, username, secret string) Entry {
	now := time.Now().UTC().UnixMilli()
	return Entry{
		ID:        uuid.NewString(),
		Service:   service,
		Username:  username,
		Secret:    secret,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// touch bumps UpdatedAt, keeping it monotonically non-decreasing even if
// the wall clock steps backwards.
func (e *Entry) touch() {
	now := time.Now().UTC().UnixMilli()
	if now <= e.UpdatedAt {
		now = e.UpdatedAt + 1
	}
	e.UpdatedAt = now
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].Categories != nil {
			out[i].Categories = append([]string(nil), out[i].Categories...)
		}
	}
	return out
}

// categoriesOf returns the sorted distinct categories across entries.
func categoriesOf(entries []Entry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, c := range e.Categories {
			if c != "" {
				seen[c] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
