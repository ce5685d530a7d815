package escrow

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

const keyringService = "credvault"

// KeyringStore holds escrow key material in the OS secure store
// (Keychain, Secret Service, Credential Manager). On desktop targets the
// OS store stands in for the mobile secure element: the key is never
// written to ordinary files and access goes through the platform daemon.
type KeyringStore struct{}

// NewKeyringStore returns the OS-backed secret store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (k *KeyringStore) Set(alias string, key []byte) error {
	return keyring.Set(keyringService, alias, base64.StdEncoding.EncodeToString(key))
}

func (k *KeyringStore) Get(alias string) ([]byte, error) {
	v, err := keyring.Get(keyringService, alias)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrStoreMiss
		}
		return nil, err
	}
	return base64.StdEncoding.DecodeString(v)
}

func (k *KeyringStore) Delete(alias string) error {
	err := keyring.Delete(keyringService, alias)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrStoreMiss
	}
	return err
}

// MemoryStore is an in-process SecretStore used in tests and on
// platforms without a usable keyring daemon.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewMemoryStore returns an empty in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

func (m *MemoryStore) Set(alias string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[alias] = append([]byte(nil), key...)
	return nil
}

func (m *MemoryStore) Get(alias string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[alias]
	if !ok {
		return nil, ErrStoreMiss
	}
	return append([]byte(nil), key...), nil
}

func (m *MemoryStore) Delete(alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[alias]; !ok {
		return ErrStoreMiss
	}
	delete(m.keys, alias)
	return nil
}
