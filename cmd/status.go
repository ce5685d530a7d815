package cmd

import (
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/escrow"
)

// Status shows vault state without requiring a password
func Status() {
	store := OpenVault()

	if !store.HasMasterPassword() {
		fmt.Println("Vault: not initialized")
		fmt.Println("Run 'credvault init' to create one")
		return
	}
	fmt.Println("Vault: initialized (locked)")

	if premium := os.Getenv(envPremium); premium != "" {
		fmt.Println("Tier: premium")
	} else {
		fmt.Println("Tier: free")
	}

	esc := escrow.New(escrow.NewKeyringStore())
	st := OpenState()
	defer st.Close()
	record, _ := st.EscrowRecord()
	switch {
	case esc.HasKey() && record != "":
		fmt.Println("Biometric unlock: enabled")
	case record != "":
		fmt.Println("Biometric unlock: record present but key missing, re-run 'credvault biometric enable'")
	default:
		fmt.Println("Biometric unlock: disabled")
	}

	if modified, err := st.Modified(); err == nil && !modified.IsZero() {
		fmt.Printf("State modified: %s\n", modified.Format("2006-01-02 15:04:05"))
	}
}
