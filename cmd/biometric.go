package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/escrow"
	"github.com/credvault/credvault/internal/vault"
)

// BiometricEnable enrolls the master password into hardware-backed
// escrow so the vault can be unlocked without retyping it. On this
// platform the OS keyring stands in for the secure element; the wrapped
// record is meaningless without the key stored there.
func BiometricEnable() {
	store := OpenVault()

	password := GetPasswordOrExit("Enter master password: ")
	defer crypto.ClearBytes(password)
	if !store.VerifyPassword(password) {
		HandleError(vault.ErrAuthentication)
	}

	esc := escrow.New(escrow.NewKeyringStore())
	// Fresh key per enrollment. Any prior escrow record becomes
	// permanently unreadable.
	if err := esc.Generate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create escrow key: %s\n", err)
		os.Exit(1)
	}

	record, err := rewrap(esc, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	st := OpenState()
	defer st.Close()
	if err := st.SetEscrowRecord(record); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Biometric unlock enabled")
}

// BiometricDisable deletes the escrow key and record. Idempotent.
func BiometricDisable() {
	esc := escrow.New(escrow.NewKeyringStore())
	if err := esc.Delete(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	st := OpenState()
	defer st.Close()
	if err := st.DeleteEscrowRecord(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Biometric unlock disabled")
}

// BiometricUnlock unlocks the vault through escrow instead of a typed
// password and reports the entry count. The authentication ceremony is
// user driven, so an interrupt between it and the unlock aborts with the
// vault still locked.
func BiometricUnlock(ctx context.Context) {
	st := OpenState()
	defer st.Close()

	recordText, err := st.EscrowRecord()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if recordText == "" {
		fmt.Fprintln(os.Stderr, "Error: biometric unlock not enabled")
		fmt.Fprintln(os.Stderr, "Run 'credvault biometric enable' first")
		os.Exit(1)
	}
	record, err := escrow.DecodeRecord(recordText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	esc := escrow.New(escrow.NewKeyringStore())
	handle, err := esc.IssueChallenge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer handle.Close()
	if err := handle.Authenticate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: authentication failed: %s\n", err)
		os.Exit(1)
	}

	secret, err := esc.Unwrap(record, handle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(secret)

	if err := ctx.Err(); err != nil {
		HandleError(err)
	}
	store := OpenVault()
	entries, err := store.UnlockWithSecret(secret)
	if err != nil {
		HandleError(err)
	}
	defer store.Lock()

	fmt.Printf("✓ Unlocked via biometric escrow (%d entries)\n", len(entries))
}
