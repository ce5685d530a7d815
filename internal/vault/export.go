package vault

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/credvault/credvault/internal/crypto"
)

// exportPrefix marks the protected export envelope. The payload after it
// is the base64 of the same versioned container the vault file uses, so
// an export is decryptable with the master password alone.
const exportPrefix = "cv1:"

// VerifyPassword attempts derive+decrypt against the persisted blob.
// Success implies the password is correct; a wrong password and a
// corrupted blob are deliberately indistinguishable.
func (s *Store) VerifyPassword(password []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := readBlob(s.path)
	if err != nil {
		return false
	}
	key := crypto.DeriveKey(password, blob.KDF)
	defer crypto.ClearBytes(key)

	plaintext, err := crypto.Decrypt(key, blob.Nonce, blob.Ciphertext)
	if err != nil {
		return false
	}
	crypto.ClearBytes(plaintext)
	return true
}

// Export serializes the entry list into a protected text envelope. The
// envelope carries its own KDF parameters, so it stays importable after
// the vault is re-keyed, as long as the exporting password is known.
func (s *Store) Export() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked(); err != nil {
		return "", err
	}

	params, err := crypto.DefaultParams()
	if err != nil {
		return "", err
	}
	key := crypto.DeriveKey(s.password, params)
	defer crypto.ClearBytes(key)

	plaintext, err := json.Marshal(s.entries)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(plaintext)

	nonce, ciphertext, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return "", err
	}

	envelope, err := json.Marshal(&Blob{
		Version:    blobVersion,
		KDF:        params,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	})
	if err != nil {
		return "", err
	}
	return exportPrefix + base64.StdEncoding.EncodeToString(envelope), nil
}

// Import merges or replaces entries from an export envelope or a CSV
// dump. Entries are deduplicated by id; in merge mode existing entries
// absent from the import are preserved and id conflicts are overwritten
// by the imported entry. Returns the number of entries taken from the
// import, or -1 with ErrImportValidation when the payload cannot be
// parsed.
func (s *Store) Import(data string, merge bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked(); err != nil {
		return -1, err
	}

	imported, err := s.parseImportLocked(data)
	if err != nil {
		s.log.Warn("import rejected", zap.Error(err))
		s.publishLocked(UserMessage(ErrImportValidation), "")
		return -1, ErrImportValidation
	}

	imported = dedupeByID(imported)

	var updated []Entry
	if merge {
		index := make(map[string]int, len(s.entries))
		updated = cloneEntries(s.entries)
		for i, e := range updated {
			index[e.ID] = i
		}
		for _, e := range imported {
			if i, ok := index[e.ID]; ok {
				updated[i] = e
			} else {
				index[e.ID] = len(updated)
				updated = append(updated, e)
			}
		}
	} else {
		updated = imported
	}

	if !s.premium && len(updated) > FreeTierLimit {
		return -1, ErrCapacity
	}

	if err := s.writeEntriesLocked(s.key, s.params, updated); err != nil {
		return -1, err
	}
	s.entries = updated

	s.log.Info("entries imported",
		zap.Int("imported", len(imported)),
		zap.Int("total", len(updated)),
		zap.Bool("merge", merge))
	s.publishLocked("", "Import complete")
	return len(imported), nil
}

// ParseImport decodes an import payload without persisting anything,
// for dry-run previews. Callers hold no lock; the vault must be
// unlocked so the envelope password is available.
func (s *Store) ParseImport(data string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlockedLocked(); err != nil {
		return nil, err
	}
	entries, err := s.parseImportLocked(data)
	if err != nil {
		return nil, ErrImportValidation
	}
	return dedupeByID(entries), nil
}

func (s *Store) parseImportLocked(data string) ([]Entry, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, ErrImportValidation
	}

	if strings.HasPrefix(trimmed, exportPrefix) {
		envelope, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, exportPrefix))
		if err != nil {
			return nil, ErrImportValidation
		}
		var b Blob
		if err := json.Unmarshal(envelope, &b); err != nil {
			return nil, ErrImportValidation
		}
		key := crypto.DeriveKey(s.password, b.KDF)
		defer crypto.ClearBytes(key)

		plaintext, err := crypto.Decrypt(key, b.Nonce, b.Ciphertext)
		if err != nil {
			return nil, ErrAuthentication
		}
		defer crypto.ClearBytes(plaintext)

		var entries []Entry
		if err := json.Unmarshal(plaintext, &entries); err != nil {
			return nil, ErrImportValidation
		}
		return entries, nil
	}

	return parseCSVImport(trimmed)
}

// parseCSVImport reads the common password-manager CSV shape:
// service,username,password[,notes], with an optional header row.
func parseCSVImport(data string) ([]Entry, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, ErrImportValidation
	}

	start := 0
	if isCSVHeader(records[0]) {
		start = 1
	}

	var entries []Entry
	for _, rec := range records[start:] {
		if len(rec) < 3 {
			return nil, ErrImportValidation
		}
		e := NewEntry(strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]), rec[2])
		if len(rec) > 3 {
			e.Notes = strings.TrimSpace(rec[3])
		}
		if e.Service == "" {
			return nil, ErrImportValidation
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, ErrImportValidation
	}
	return entries, nil
}

func isCSVHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	joined := strings.ToLower(strings.Join(rec, ","))
	return (strings.Contains(joined, "service") || strings.Contains(joined, "name") || strings.Contains(joined, "url")) &&
		strings.Contains(joined, "password")
}

func dedupeByID(entries []Entry) []Entry {
	seen := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if i, ok := seen[e.ID]; ok {
			out[i] = e
			continue
		}
		seen[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
