package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

// BalanceStore is the part of a ledger transaction the recompute pass uses.
type BalanceStore interface {
	ScanActiveOrdered(ctx context.Context) ([]LedgerEntry, error)
	WriteBalance(ctx context.Context, id uuid.UUID, balance int64) error
}

// Balances maps transaction ids to the running balance written for them.
type Balances map[uuid.UUID]int64

// Recompute rewrites the running balance of every active transaction.
//
// The active set is read fresh in ledger order and walked once, accumulating
// credited minus debited in cents. Every entry is written, changed or not,
// so a pass always leaves the whole ledger consistent with the current rows.
// It must run inside the same storage transaction as the mutation that
// triggered it; on error the caller rolls back. A balance that leaves the
// int64 range is a ValidationError and nothing after it is written.
func Recompute(ctx context.Context, s BalanceStore) (Balances, error) {
	entries, err := s.ScanActiveOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning active ledger: %w", err)
	}

	balances := make(Balances, len(entries))

	var balance int64

	for _, e := range entries {
		next, err := money.Add(balance, e.Credited)
		if err == nil {
			next, err = money.Sub(next, e.Debited)
		}

		if err != nil {
			return nil, &ValidationError{Field: "amount", Reason: "running balance out of range"}
		}

		balance = next

		if err := s.WriteBalance(ctx, e.ID, balance); err != nil {
			return nil, fmt.Errorf("writing balance for %s: %w", e.ID, err)
		}

		balances[e.ID] = balance
	}

	return balances, nil
}
