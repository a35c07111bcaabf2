package transaction

import (
	"strings"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

// Snapshot captures every persisted field of t for the audit log.
func Snapshot(t *Transaction) audit.Snapshot {
	category := ""
	if t.CategoryID != nil {
		category = t.CategoryID.String()
	}

	return audit.NewSnapshot(map[string]string{
		"id":               t.ID.String(),
		"transaction_date": t.Date.Format(time.DateOnly),
		"category_id":      category,
		"description":      t.Description,
		"credited":         money.Format(t.Credited),
		"debited":          money.Format(t.Debited),
		"running_balance":  money.Format(t.Balance),
		"tags":             strings.Join(t.Tags, ","),
		"notes":            t.Notes,
		"status":           string(t.Status),
		"created_at":       t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":       t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}
