package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a transaction.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Transaction represents a ledger entry.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time // Calendar date, UTC midnight
	CategoryID  *uuid.UUID
	Category    *Category // Loaded via JOIN
	Description string
	Credited    int64 // Amount in cents
	Debited     int64 // Amount in cents
	Balance     int64 // Running balance in cents, written only by Recompute
	Tags        []string
	Notes       string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category is the read-side view of the category a transaction references.
type Category struct {
	ID     uuid.UUID
	Name   string
	Color  string
	Active bool
}

// Net returns the signed effect of the transaction on the balance.
func (t *Transaction) Net() int64 {
	return t.Credited - t.Debited
}

// LedgerEntry is the slice of a transaction the recompute pass needs.
type LedgerEntry struct {
	ID       uuid.UUID
	Credited int64
	Debited  int64
}

// Compare orders transactions by the ledger ordering key:
// date, then creation time, then id.
func Compare(a, b *Transaction) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}

	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}

	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}

			return 1
		}
	}

	return 0
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
