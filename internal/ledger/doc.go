// Package ledger holds the travel wallet domain model and the storage contract
// that keeps trip balances consistent with recorded expenses.
package ledger
