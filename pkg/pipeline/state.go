package pipeline

import (
	"fmt"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

// transitions is the legal status graph for a transaction:
// pending -> matched | failed, matched -> uploaded | failed.
// uploaded and failed are terminal.
var transitions = map[db.TransactionStatus][]db.TransactionStatus{
	db.StatusPending: {db.StatusMatched, db.StatusFailed},
	db.StatusMatched: {db.StatusUploaded, db.StatusFailed},
}

// CanTransition reports whether moving a transaction from one status to
// another is legal.
func CanTransition(from, to db.TransactionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is a durable end state.
func IsTerminal(status db.TransactionStatus) bool {
	return len(transitions[status]) == 0
}

// transition validates and persists a status change.
func transition(store *db.TransactionStore, txn db.Transaction, to db.TransactionStatus) error {
	if !CanTransition(txn.Status, to) {
		return fmt.Errorf("illegal transition %s -> %s for transaction %s", txn.Status, to, txn.ExternalID)
	}
	return store.UpdateStatus(txn.ID, to)
}
