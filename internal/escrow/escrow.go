package escrow

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/credvault/credvault/internal/crypto"
)

// AuthValidityWindow bounds how long an authenticated challenge handle
// stays usable. Mirrors the validity duration of auth-gated hardware
// keys: a successful user-presence check authorizes key use for only a
// few seconds.
const AuthValidityWindow = 5 * time.Second

var (
	ErrNoKey        = errors.New("no escrow key enrolled")
	ErrAuthRequired = errors.New("authentication required")
	ErrAuthExpired  = errors.New("authentication window expired")
	ErrUnwrapFailed = errors.New("escrow record unusable")
)

// State is the escrow lifecycle state.
type State int

const (
	StateNoKey State = iota
	StateKeyReady
)

// Record is a master secret wrapped under the hardware-backed key. It is
// meaningless without that key, which never leaves the secure store.
type Record struct {
	WrappedSecret []byte `json:"wrappedSecret"`
	IV            []byte `json:"iv"`
}

// HardwareKeyEscrow is the platform capability used to wrap and unwrap a
// secret under a non-exportable, user-authentication-gated key. The
// vault and fill coordinator never see platform types behind it.
type HardwareKeyEscrow interface {
	// Generate creates the hardware-backed key, replacing any prior key.
	// Records wrapped under a replaced key become permanently unreadable.
	Generate() error
	// HasKey reports whether a key is enrolled.
	HasKey() bool
	// State returns NoKey or KeyReady.
	State() State
	// IssueChallenge returns an uninitialized unlock handle. The caller
	// drives it through the platform authentication ceremony before
	// wrapping or unwrapping.
	IssueChallenge() (*UnlockChallenge, error)
	// Wrap encrypts a secret under the key. Requires a freshly
	// authenticated handle.
	Wrap(secret []byte, handle *UnlockChallenge) (*Record, error)
	// Unwrap recovers the secret. Fails closed if the authentication
	// window lapsed or the record fails its integrity check.
	Unwrap(rec *Record, handle *UnlockChallenge) ([]byte, error)
	// Delete removes the key. Idempotent.
	Delete() error
}

// SecretStore abstracts the platform secure element holding the raw key
// material. Implementations must keep the key out of ordinary storage.
type SecretStore interface {
	Set(alias string, key []byte) error
	Get(alias string) ([]byte, error)
	Delete(alias string) error
}

// ErrStoreMiss is returned by SecretStore.Get when no key exists.
var ErrStoreMiss = errors.New("key not found in secure store")

const (
	keyAlias = "credvault-escrow-key"
	// Key material from the pre-rename releases lived under this alias.
	// It is left untouched: re-enrollment creates a key under the
	// current alias and the stale one is harmless.
	legacyKeyAlias = "cryptavault-escrow-key"
)

// Escrow wraps and unwraps secrets under a key held in a SecretStore.
type Escrow struct {
	store SecretStore
	now   func() time.Time
}

// New builds an Escrow over the given secure store.
func New(store SecretStore) *Escrow {
	return &Escrow{store: store, now: time.Now}
}

// Generate creates a fresh 32-byte key in the secure store. Idempotent:
// a prior key is deleted and replaced, by design making any existing
// escrow records permanently unreadable.
func (e *Escrow) Generate() error {
	if err := e.store.Delete(keyAlias); err != nil && !errors.Is(err, ErrStoreMiss) {
		return fmt.Errorf("failed to replace escrow key: %w", err)
	}
	key, err := crypto.GenerateRandom(crypto.KeySize)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(key)
	if err := e.store.Set(keyAlias, key); err != nil {
		return fmt.Errorf("failed to enroll escrow key: %w", err)
	}
	return nil
}

// HasKey reports whether a key is enrolled under the current alias.
func (e *Escrow) HasKey() bool {
	key, err := e.store.Get(keyAlias)
	if err != nil {
		return false
	}
	crypto.ClearBytes(key)
	return true
}

// State returns the escrow lifecycle state.
func (e *Escrow) State() State {
	if e.HasKey() {
		return StateKeyReady
	}
	return StateNoKey
}

// IssueChallenge returns an uninitialized unlock handle. Initialization
// with the record's IV is only safe immediately after a successful
// authentication event, so the handle is issued bare and the caller
// completes it through Authenticate.
func (e *Escrow) IssueChallenge() (*UnlockChallenge, error) {
	if !e.HasKey() {
		return nil, ErrNoKey
	}
	return &UnlockChallenge{escrow: e}, nil
}

// Wrap encrypts the secret under the enrolled key.
func (e *Escrow) Wrap(secret []byte, handle *UnlockChallenge) (*Record, error) {
	key, err := e.authedKey(handle)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	nonce, ciphertext, err := crypto.Encrypt(key, secret)
	if err != nil {
		return nil, err
	}
	return &Record{WrappedSecret: ciphertext, IV: nonce}, nil
}

// Unwrap recovers the wrapped secret. Fails closed on a lapsed window or
// a tampered record.
func (e *Escrow) Unwrap(rec *Record, handle *UnlockChallenge) ([]byte, error) {
	if rec == nil {
		return nil, ErrUnwrapFailed
	}
	key, err := e.authedKey(handle)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	secret, err := crypto.Decrypt(key, rec.IV, rec.WrappedSecret)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return secret, nil
}

// Delete removes the enrolled key. Idempotent; used when biometric
// unlock is disabled or the vault is reset.
func (e *Escrow) Delete() error {
	if err := e.store.Delete(keyAlias); err != nil && !errors.Is(err, ErrStoreMiss) {
		return fmt.Errorf("failed to delete escrow key: %w", err)
	}
	return nil
}

func (e *Escrow) authedKey(handle *UnlockChallenge) ([]byte, error) {
	if handle == nil || handle.escrow != e || handle.key == nil {
		return nil, ErrAuthRequired
	}
	if e.now().Sub(handle.authedAt) > AuthValidityWindow {
		handle.invalidate()
		return nil, ErrAuthExpired
	}
	return append([]byte(nil), handle.key...), nil
}

// UnlockChallenge is a two-phase decryption handle. It is issued
// uninitialized; the platform authentication ceremony calls Authenticate
// on success, after which the handle is valid for AuthValidityWindow.
type UnlockChallenge struct {
	escrow   *Escrow
	key      []byte
	authedAt time.Time
}

// Authenticate completes the handle after a successful user-presence
// check. Accessing the secure store is the auth-gated step; failure
// means the ceremony did not actually authorize key use.
func (c *UnlockChallenge) Authenticate() error {
	key, err := c.escrow.store.Get(keyAlias)
	if err != nil {
		if errors.Is(err, ErrStoreMiss) {
			return ErrNoKey
		}
		return ErrAuthRequired
	}
	c.key = key
	c.authedAt = c.escrow.now()
	return nil
}

// Close discards the handle's key material. Safe to call at any time.
func (c *UnlockChallenge) Close() {
	c.invalidate()
}

func (c *UnlockChallenge) invalidate() {
	crypto.ClearBytes(c.key)
	c.key = nil
	c.authedAt = time.Time{}
}

// EncodeRecord renders a record for persistence.
func EncodeRecord(rec *Record) string {
	return base64.StdEncoding.EncodeToString(rec.WrappedSecret) + ":" +
		base64.StdEncoding.EncodeToString(rec.IV)
}

// DecodeRecord parses a persisted record.
func DecodeRecord(s string) (*Record, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return nil, ErrUnwrapFailed
	}
	wrapped, err := base64.StdEncoding.DecodeString(s[:i])
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	iv, err := base64.StdEncoding.DecodeString(s[i+1:])
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return &Record{WrappedSecret: wrapped, IV: iv}, nil
}
