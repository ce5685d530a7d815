// Package escrow wraps the vault's master secret under a non-exportable,
// authentication-gated key so a biometric (or OS secure-store) unlock can
// open the vault without retyping the master password. Unwrapping is a
// two-phase ceremony: issue a bare challenge handle, authenticate it,
// then finish within a short validity window.
package escrow
