// Package crypto provides the authenticated-encryption and key-derivation
// primitives for the credential vault: Argon2id for turning a master
// password into a symmetric key, and XChaCha20-Poly1305 for sealing the
// vault contents. Decryption fails closed on any tampering.
package crypto
