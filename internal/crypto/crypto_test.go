package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	p, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}

	k1 := DeriveKey([]byte("hunter2"), p)
	k2 := DeriveKey([]byte("hunter2"), p)
	if !bytes.Equal(k1, k2) {
		t.Error("same password and params must derive the same key")
	}
	if len(k1) != KeySize {
		t.Errorf("key length = %d, want %d", len(k1), KeySize)
	}

	k3 := DeriveKey([]byte("hunter3"), p)
	if bytes.Equal(k1, k3) {
		t.Error("different passwords must derive different keys")
	}

	p2, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}
	k4 := DeriveKey([]byte("hunter2"), p2)
	if bytes.Equal(k1, k4) {
		t.Error("different salts must derive different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	p, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}
	key := DeriveKey([]byte("test123"), p)

	plaintext := []byte(`[{"service":"github.com","username":"alice"}]`)
	nonce, ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(nonce) != NonceSize {
		t.Errorf("nonce length = %d, want %d", len(nonce), NonceSize)
	}
	if bytes.Contains(ciphertext, []byte("github.com")) {
		t.Error("ciphertext leaks plaintext")
	}

	decrypted, err := Decrypt(key, nonce, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("round trip did not preserve plaintext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	p, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}
	key := DeriveKey([]byte("right"), p)
	wrong := DeriveKey([]byte("wrong"), p)

	nonce, ciphertext, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(wrong, nonce, ciphertext); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	p, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}
	key := DeriveKey([]byte("test123"), p)

	nonce, ciphertext, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one bit anywhere in the ciphertext
	for i := range ciphertext {
		corrupted := bytes.Clone(ciphertext)
		corrupted[i] ^= 0x01
		if _, err := Decrypt(key, nonce, corrupted); !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("bit flip at byte %d not detected: %v", i, err)
		}
	}

	// Flip a bit in the nonce too
	badNonce := bytes.Clone(nonce)
	badNonce[0] ^= 0x01
	if _, err := Decrypt(key, badNonce, ciphertext); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("nonce tampering not detected: %v", err)
	}
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := Decrypt(key, make([]byte, NonceSize), []byte("short")); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
	if _, err := Decrypt(key, []byte("bad"), make([]byte, 64)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext for short nonce, got %v", err)
	}
}

func TestNonceUniqueness(t *testing.T) {
	key := make([]byte, KeySize)
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		nonce, _, err := Encrypt(key, []byte("x"))
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[string(nonce)] {
			t.Fatal("nonce reused")
		}
		seen[string(nonce)] = true
	}
}

func TestClearBytes(t *testing.T) {
	b := []byte("sensitive")
	ClearBytes(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not cleared", i)
		}
	}
}
