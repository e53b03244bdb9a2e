package pipeline

import (
	"testing"

	"github.com/shunichi-ikebuchi/invoice-reconciler/pkg/db"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    db.TransactionStatus
		to      db.TransactionStatus
		allowed bool
	}{
		{db.StatusPending, db.StatusMatched, true},
		{db.StatusPending, db.StatusFailed, true},
		{db.StatusMatched, db.StatusUploaded, true},
		{db.StatusMatched, db.StatusFailed, true},
		{db.StatusPending, db.StatusUploaded, false},
		{db.StatusUploaded, db.StatusFailed, false},
		{db.StatusFailed, db.StatusPending, false},
		{db.StatusUploaded, db.StatusPending, false},
		{db.StatusMatched, db.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, expected %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   db.TransactionStatus
		terminal bool
	}{
		{db.StatusPending, false},
		{db.StatusMatched, false},
		{db.StatusUploaded, true},
		{db.StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTerminal(tt.status); got != tt.terminal {
				t.Errorf("IsTerminal(%s) = %v, expected %v", tt.status, got, tt.terminal)
			}
		})
	}
}
