package vault

import "errors"

// Error taxonomy for the vault core. Authentication and crypto failures
// share one user-facing message: the caller must not be able to tell a
// wrong password apart from a tampered blob.
var (
	ErrNotSetup         = errors.New("no master password has been set")
	ErrAlreadySetup     = errors.New("vault already set up")
	ErrAuthentication   = errors.New("incorrect password or corrupted vault")
	ErrCrypto           = errors.New("decryption failed")
	ErrLocked           = errors.New("vault is locked")
	ErrCapacity         = errors.New("free tier limit reached")
	ErrImportValidation = errors.New("import data is not valid")
	ErrIO               = errors.New("vault storage failure")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrDuplicateEntry   = errors.New("entry id already exists")
)

// UserMessage maps an operation error to the single displayable string
// surfaced to the UI for that failure class.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrCrypto):
		return "Incorrect password or corrupted vault"
	case errors.Is(err, ErrNotSetup):
		return "Set up a master password first"
	case errors.Is(err, ErrLocked):
		return "Vault is locked"
	case errors.Is(err, ErrCapacity):
		return "Free tier limit reached. Upgrade to add more entries"
	case errors.Is(err, ErrImportValidation):
		return "Could not read the import file"
	case errors.Is(err, ErrDuplicateEntry):
		return "An entry with this id already exists"
	case errors.Is(err, ErrIO):
		return "Could not access vault storage"
	default:
		return "Something went wrong"
	}
}
