// Package autofill orchestrates fill and save transactions between the
// OS autofill boundary and the vault: field classification, the
// biometric authentication path through escrow, credential matching,
// and the short-lived session cache that correlates a fill request with
// its authenticated follow-up.
package autofill
