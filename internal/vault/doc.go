// Package vault owns the encrypted credential store. A Store moves
// through Uninitialized → Locked → Unlocked, keeps the decrypted entry
// list only in memory while unlocked, and replaces the single persisted
// blob atomically on every mutation.
package vault
