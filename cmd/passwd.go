package cmd

import (
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/escrow"
)

// Passwd changes the master password and re-encrypts the vault
func Passwd() {
	store := OpenVault()

	current := GetPasswordOrExit("Enter current master password: ")
	defer crypto.ClearBytes(current)

	next, err := ReadPasswordConfirm()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer crypto.ClearBytes(next)

	if err := store.ChangeMasterPassword(current, next); err != nil {
		HandleError(err)
	}

	// Refresh the escrow record so biometric unlock keeps working with
	// the new password.
	st := OpenState()
	defer st.Close()
	if record, err := st.EscrowRecord(); err == nil && record != "" {
		esc := escrow.New(escrow.NewKeyringStore())
		if rewrapped, err := rewrap(esc, next); err == nil {
			if err := st.SetEscrowRecord(rewrapped); err == nil {
				fmt.Println("Biometric unlock updated with new password")
			}
		} else {
			fmt.Fprintf(os.Stderr, "warning: biometric unlock is stale, run 'credvault biometric enable' again: %s\n", err)
		}
	}

	fmt.Println("password changed successfully")
}

func rewrap(esc *escrow.Escrow, password []byte) (string, error) {
	handle, err := esc.IssueChallenge()
	if err != nil {
		return "", err
	}
	defer handle.Close()
	if err := handle.Authenticate(); err != nil {
		return "", err
	}
	rec, err := esc.Wrap(password, handle)
	if err != nil {
		return "", err
	}
	return escrow.EncodeRecord(rec), nil
}
