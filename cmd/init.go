package cmd

import (
	"fmt"
	"os"

	"github.com/credvault/credvault/internal/crypto"
)

// Init creates the vault with a fresh master password
func Init() {
	store := OpenVault()

	password := GetPasswordFromEnv()
	if password == nil {
		var err error
		password, err = ReadPasswordConfirm()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}
	defer crypto.ClearBytes(password)

	if err := store.Setup(password); err != nil {
		HandleError(err)
	}

	fmt.Println("✓ Vault initialized")
}
