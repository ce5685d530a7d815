package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/credvault/credvault/internal/crypto"
)

// FreeTierLimit caps the entry count for non-premium vaults.
const FreeTierLimit = 10

// State is the vault lifecycle state.
type State int

const (
	StateUninitialized State = iota // no master password ever set
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Snapshot is the reactive vault state observed by the UI layer. Entries
// is nil unless the vault is unlocked.
type Snapshot struct {
	HasMasterPassword   bool
	Unlocked            bool
	Entries             []Entry
	AvailableCategories []string
	ErrorMessage        string
	SuccessMessage      string
}

// Store owns the single encrypted vault blob: create, unlock, lock,
// mutate and re-key. Every mutation re-encrypts the whole entry list and
// replaces the blob atomically; mutations are serialized by the store
// mutex so no two read-decrypt-modify-encrypt-write cycles interleave.
type Store struct {
	path    string
	premium bool
	log     *zap.Logger

	mu       sync.Mutex
	state    State
	params   crypto.Params
	key      []byte
	password []byte // retained while unlocked, for export/import envelopes
	entries  []Entry

	subMu sync.Mutex
	subs  []chan Snapshot

	// rename is swappable so tests can inject faults into the atomic
	// replace step.
	rename func(oldpath, newpath string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPremium lifts the free-tier entry cap.
func WithPremium(premium bool) Option {
	return func(s *Store) { s.premium = premium }
}

// Open creates a Store over the vault file at path. The initial state is
// Uninitialized if the file does not exist, Locked otherwise.
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		log:    zap.NewNop(),
		state:  StateUninitialized,
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := os.Stat(path); err == nil {
		s.state = StateLocked
	}
	return s
}

// Path returns the vault file location.
func (s *Store) Path() string { return s.path }

// HasMasterPassword reports whether setup has ever completed.
func (s *Store) HasMasterPassword() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateUninitialized
}

// State returns the current observable snapshot.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("", "")
}

// Watch registers an observer. Snapshots are published after every state
// transition from a single goroutine; slow observers miss intermediate
// snapshots rather than blocking the vault.
func (s *Store) Watch() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) snapshotLocked(errMsg, okMsg string) Snapshot {
	snap := Snapshot{
		HasMasterPassword: s.state != StateUninitialized,
		Unlocked:          s.state == StateUnlocked,
		ErrorMessage:      errMsg,
		SuccessMessage:    okMsg,
	}
	if s.state == StateUnlocked {
		snap.Entries = cloneEntries(s.entries)
		snap.AvailableCategories = categoriesOf(s.entries)
	}
	return snap
}

func (s *Store) publishLocked(errMsg, okMsg string) {
	snap := s.snapshotLocked(errMsg, okMsg)
	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	s.subMu.Unlock()
}

// Setup creates the vault with an empty entry list. Only valid from the
// Uninitialized state.
func (s *Store) Setup(password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return ErrAlreadySetup
	}

	params, err := crypto.DefaultParams()
	if err != nil {
		return err
	}
	key := crypto.DeriveKey(password, params)
	defer crypto.ClearBytes(key)

	if err := s.writeEntriesLocked(key, params, []Entry{}); err != nil {
		return err
	}

	s.state = StateLocked
	s.log.Info("vault created", zap.String("path", s.path))
	s.publishLocked("", "Vault created")
	return nil
}

// Unlock derives the key from the blob's stored salt and decrypts the
// entry list. On failure the vault stays Locked and the error does not
// reveal whether the password was wrong or the blob was tampered with.
func (s *Store) Unlock(password []byte) ([]Entry, error) {
	return s.unlock(password)
}

// UnlockWithSecret unlocks using a master secret recovered from escrow
// rather than typed by the user.
func (s *Store) UnlockWithSecret(secret []byte) ([]Entry, error) {
	return s.unlock(secret)
}

func (s *Store) unlock(password []byte) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return nil, ErrNotSetup
	}

	blob, err := readBlob(s.path)
	if err != nil {
		s.publishLocked(UserMessage(err), "")
		return nil, err
	}

	key := crypto.DeriveKey(password, blob.KDF)
	plaintext, err := crypto.Decrypt(key, blob.Nonce, blob.Ciphertext)
	if err != nil {
		crypto.ClearBytes(key)
		s.log.Warn("unlock failed")
		s.publishLocked(UserMessage(ErrAuthentication), "")
		return nil, ErrAuthentication
	}

	var entries []Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		crypto.ClearBytes(key)
		crypto.ClearBytes(plaintext)
		s.publishLocked(UserMessage(ErrAuthentication), "")
		return nil, ErrAuthentication
	}
	crypto.ClearBytes(plaintext)

	s.clearSecretsLocked()
	s.state = StateUnlocked
	s.params = blob.KDF
	s.key = key
	s.password = append([]byte(nil), password...)
	s.entries = entries

	s.log.Info("vault unlocked", zap.Int("entries", len(entries)))
	s.publishLocked("", "")
	return cloneEntries(entries), nil
}

// Lock clears the in-memory entry cache and key material. Valid from any
// state; locking an uninitialized vault is a no-op.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return
	}
	s.clearSecretsLocked()
	s.state = StateLocked
	s.log.Info("vault locked")
	s.publishLocked("", "")
}

func (s *Store) clearSecretsLocked() {
	crypto.ClearBytes(s.key)
	crypto.ClearBytes(s.password)
	s.key = nil
	s.password = nil
	for i := range s.entries {
		s.entries[i].Secret = ""
	}
	s.entries = nil
}

// Entries returns the decrypted entry list. Valid only while Unlocked.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlockedLocked(); err != nil {
		return nil, err
	}
	return cloneEntries(s.entries), nil
}

// AvailableCategories returns the distinct categories across entries.
func (s *Store) AvailableCategories() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlockedLocked(); err != nil {
		return nil, err
	}
	return categoriesOf(s.entries), nil
}

func (s *Store) requireUnlockedLocked() error {
	switch s.state {
	case StateUninitialized:
		return ErrNotSetup
	case StateLocked:
		return ErrLocked
	}
	return nil
}

// AddEntry appends a new entry and persists the whole list. Non-premium
// vaults are capped at FreeTierLimit entries.
func (s *Store) AddEntry(e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked(); err != nil {
		return Entry{}, err
	}
	if !s.premium && len(s.entries)+1 > FreeTierLimit {
		return Entry{}, ErrCapacity
	}

	if e.ID == "" {
		e = NewEntry(e.Service, e.Username, e.Secret)
	} else {
		// Ids are never reused. A caller-supplied id colliding with a
		// cached entry would leave UpdateEntry and DeleteEntry acting
		// on an ambiguous list.
		for i := range s.entries {
			if s.entries[i].ID == e.ID {
				return Entry{}, ErrDuplicateEntry
			}
		}
		e.touch()
	}

	updated := append(cloneEntries(s.entries), e)
	if err := s.writeEntriesLocked(s.key, s.params, updated); err != nil {
		return Entry{}, err
	}
	s.entries = updated

	s.log.Info("entry added", zap.String("service", e.Service), zap.Int("entries", len(updated)))
	s.publishLocked("", "Entry added")
	return e, nil
}

// UpdateEntry replaces the entry with the same id, bumping UpdatedAt.
func (s *Store) UpdateEntry(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked(); err != nil {
		return err
	}

	updated := cloneEntries(s.entries)
	found := false
	for i := range updated {
		if updated[i].ID == e.ID {
			e.CreatedAt = updated[i].CreatedAt
			if e.UpdatedAt < updated[i].UpdatedAt {
				e.UpdatedAt = updated[i].UpdatedAt
			}
			e.touch()
			updated[i] = e
			found = true
			break
		}
	}
	if !found {
		return ErrEntryNotFound
	}

	if err := s.writeEntriesLocked(s.key, s.params, updated); err != nil {
		return err
	}
	s.entries = updated
	s.publishLocked("", "Entry updated")
	return nil
}

// DeleteEntry removes the entry with the given id.
func (s *Store) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked(); err != nil {
		return err
	}

	updated := make([]Entry, 0, len(s.entries))
	found := false
	for _, e := range s.entries {
		if e.ID == id {
			found = true
			continue
		}
		updated = append(updated, e)
	}
	if !found {
		return ErrEntryNotFound
	}

	if err := s.writeEntriesLocked(s.key, s.params, updated); err != nil {
		return err
	}
	s.entries = updated
	s.publishLocked("", "Entry deleted")
	return nil
}

// ChangeMasterPassword re-keys the vault: verifies the old password,
// derives a fresh salt and key, and atomically replaces the blob. On any
// failure the previous blob is left completely untouched.
func (s *Store) ChangeMasterPassword(oldPassword, newPassword []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return ErrNotSetup
	}

	blob, err := readBlob(s.path)
	if err != nil {
		return err
	}
	oldKey := crypto.DeriveKey(oldPassword, blob.KDF)
	defer crypto.ClearBytes(oldKey)

	plaintext, err := crypto.Decrypt(oldKey, blob.Nonce, blob.Ciphertext)
	if err != nil {
		return ErrAuthentication
	}
	var entries []Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		crypto.ClearBytes(plaintext)
		return ErrAuthentication
	}
	crypto.ClearBytes(plaintext)

	params, err := crypto.DefaultParams()
	if err != nil {
		return err
	}
	newKey := crypto.DeriveKey(newPassword, params)

	if err := s.writeEntriesLocked(newKey, params, entries); err != nil {
		crypto.ClearBytes(newKey)
		return err
	}

	// Point the unlocked session at the new key material.
	if s.state == StateUnlocked {
		crypto.ClearBytes(s.key)
		crypto.ClearBytes(s.password)
		s.key = newKey
		s.params = params
		s.password = append([]byte(nil), newPassword...)
		s.entries = entries
	} else {
		crypto.ClearBytes(newKey)
	}

	s.log.Info("master password changed")
	s.publishLocked("", "Master password changed")
	return nil
}

// writeEntriesLocked serializes, encrypts and atomically persists the
// full entry list under the given key. Callers hold s.mu.
func (s *Store) writeEntriesLocked(key []byte, params crypto.Params, entries []Entry) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	defer crypto.ClearBytes(plaintext)

	nonce, ciphertext, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return err
	}

	blob := &Blob{
		Version:    blobVersion,
		KDF:        params,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	return writeBlobAtomic(s.path, blob, s.rename)
}
