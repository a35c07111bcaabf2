package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// Amounts are rendered as two-decimal strings so clients never see floats.
type transactionResponse struct {
	ID             uuid.UUID          `json:"id"`
	Date           string             `json:"transaction_date"`
	CategoryID     *uuid.UUID         `json:"category_id,omitempty"`
	Category       *categoryResponse  `json:"category,omitempty"`
	Description    string             `json:"description"`
	Credited       string             `json:"credited"`
	Debited        string             `json:"debited"`
	RunningBalance string             `json:"running_balance"`
	Tags           []string           `json:"tags"`
	Notes          string             `json:"notes,omitempty"`
	Status         transaction.Status `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type categoryResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

type pageResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	TotalCount   int                   `json:"total_count"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

type summaryResponse struct {
	TotalCredited string `json:"total_credited"`
	TotalDebited  string `json:"total_debited"`
	NetBalance    string `json:"net_balance"`
	Count         int    `json:"count"`
}

type auditResponse struct {
	ID        uuid.UUID         `json:"id"`
	Action    audit.Action      `json:"action"`
	Before    map[string]string `json:"before,omitempty"`
	After     map[string]string `json:"after,omitempty"`
	Changed   []string          `json:"changed,omitempty"`
	Actor     string            `json:"actor"`
	CreatedAt time.Time         `json:"created_at"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	tags := tx.Tags
	if tags == nil {
		tags = []string{}
	}

	resp := transactionResponse{
		ID:             tx.ID,
		Date:           tx.Date.Format(time.DateOnly),
		CategoryID:     tx.CategoryID,
		Description:    tx.Description,
		Credited:       money.Format(tx.Credited),
		Debited:        money.Format(tx.Debited),
		RunningBalance: money.Format(tx.Balance),
		Tags:           tags,
		Notes:          tx.Notes,
		Status:         tx.Status,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}

	if tx.Category != nil {
		resp.Category = &categoryResponse{
			ID:    tx.Category.ID,
			Name:  tx.Category.Name,
			Color: tx.Category.Color,
		}
	}

	return resp
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}

func toAuditResponseList(entries []audit.Entry) []auditResponse {
	resp := make([]auditResponse, len(entries))

	for i, e := range entries {
		resp[i] = auditResponse{
			ID:        e.ID,
			Action:    e.Action,
			Before:    e.Before.Fields,
			After:     e.After.Fields,
			Actor:     e.Actor,
			CreatedAt: e.CreatedAt,
		}

		if e.Action == audit.ActionUpdate {
			resp[i].Changed = audit.Diff(e.Before, e.After)
		}
	}

	return resp
}
