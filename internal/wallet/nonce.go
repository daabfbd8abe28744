package wallet

import "github.com/google/uuid"

// newNonce tags a pending expense; only buttons carrying it can confirm that expense.
func newNonce() string {
	return uuid.NewString()
}
