package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/credvault/credvault/internal/crypto"
)

const (
	blobVersion    = 1
	FilePermSecure = 0600 // File: owner rw only
	DirPermSecure  = 0700 // Directory: owner rwx only
)

// Blob is the persisted vault container. The ciphertext is the
// authenticated encryption of the ordered entry list; the KDF parameters
// and salt ride alongside so the key is re-derivable from the password.
type Blob struct {
	Version    int           `json:"version"`
	KDF        crypto.Params `json:"kdf"`
	Nonce      []byte        `json:"nonce"`
	Ciphertext []byte        `json:"ciphertext"`
}

func readBlob(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotSetup
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		// A mangled container is indistinguishable from a wrong key by
		// policy: both surface as the same condition.
		return nil, ErrAuthentication
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported vault version %d", ErrIO, b.Version)
	}
	return &b, nil
}

// writeBlobAtomic persists the blob with write-new-then-rename so a crash
// mid-write can never leave a truncated or interleaved vault on disk.
func writeBlobAtomic(path string, b *Blob, rename func(string, string) error) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermSecure); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(FilePermSecure); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
