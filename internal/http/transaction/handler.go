package transaction

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

type Handler struct {
	svc *transaction.Service
}

func NewHandler(svc *transaction.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Post("/batch", h.createBatch)
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Get("/{id}", h.get)
	r.Get("/{id}/history", h.history)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createTransactionRequest struct {
	Date        string          `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	CategoryID  *uuid.UUID      `json:"category_id" validate:"required"`
	Description string          `json:"description" validate:"required,max=500"`
	Credited    decimal.Decimal `json:"credited" validate:"nonnegative_decimal,cents"`
	Debited     decimal.Decimal `json:"debited" validate:"nonnegative_decimal,cents"`
	Tags        []string        `json:"tags" validate:"max=50,dive,max=50"`
	Notes       string          `json:"notes" validate:"max=2000"`
}

func (req createTransactionRequest) params() (transaction.CreateParams, error) {
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return transaction.CreateParams{}, err
	}

	credited, err := money.FromDecimal(req.Credited)
	if err != nil {
		return transaction.CreateParams{}, err
	}

	debited, err := money.FromDecimal(req.Debited)
	if err != nil {
		return transaction.CreateParams{}, err
	}

	return transaction.CreateParams{
		Date:        date,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Credited:    credited,
		Debited:     debited,
		Tags:        req.Tags,
		Notes:       req.Notes,
	}, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	params, err := req.params()
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tx, err := h.svc.Create(r.Context(), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(tx))
}

type createBatchRequest struct {
	Transactions []createTransactionRequest `json:"transactions" validate:"required,min=1,max=1000,dive"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	params := make([]transaction.CreateParams, 0, len(req.Transactions))

	for _, item := range req.Transactions {
		p, err := item.params()
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		params = append(params, p)
	}

	txs, err := h.svc.CreateBatch(r.Context(), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponseList(txs))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sf, err := summaryFilter(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	page, err := respond.QueryInt(r, "page")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	limit, err := respond.QueryInt(r, "limit")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.svc.List(r.Context(), transaction.ListFilter{
		CategoryID: sf.CategoryID,
		FromDate:   sf.FromDate,
		ToDate:     sf.ToDate,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, pageResponse{
		Transactions: toResponseList(result.Transactions),
		TotalCount:   result.TotalCount,
		Page:         result.Page,
		Limit:        result.Limit,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := summaryFilter(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	s, err := h.svc.Summary(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, summaryResponse{
		TotalCredited: money.Format(s.TotalCredited),
		TotalDebited:  money.Format(s.TotalDebited),
		NetBalance:    money.Format(s.NetBalance),
		Count:         s.Count,
	})
}

func summaryFilter(r *http.Request) (transaction.SummaryFilter, error) {
	var (
		f   transaction.SummaryFilter
		err error
	)

	if f.CategoryID, err = respond.QueryUUID(r, "category_id"); err != nil {
		return f, err
	}

	if f.FromDate, err = respond.QueryDate(r, "from_date"); err != nil {
		return f, err
	}

	if f.ToDate, err = respond.QueryDate(r, "to_date"); err != nil {
		return f, err
	}

	return f, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tx, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	entries, err := h.svc.History(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toAuditResponseList(entries))
}

// updateTransactionRequest carries only the fields being changed.
type updateTransactionRequest struct {
	Date        *string          `json:"transaction_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Credited    *decimal.Decimal `json:"credited,omitempty" validate:"omitempty,nonnegative_decimal,cents"`
	Debited     *decimal.Decimal `json:"debited,omitempty" validate:"omitempty,nonnegative_decimal,cents"`
	Tags        *[]string        `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=50"`
	Notes       *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func (req updateTransactionRequest) patch() (transaction.Patch, error) {
	p := transaction.Patch{
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Tags:        req.Tags,
		Notes:       req.Notes,
	}

	if req.Date != nil {
		date, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			return p, err
		}

		p.Date = &date
	}

	if req.Credited != nil {
		cents, err := money.FromDecimal(*req.Credited)
		if err != nil {
			return p, err
		}

		p.Credited = &cents
	}

	if req.Debited != nil {
		cents, err := money.FromDecimal(*req.Debited)
		if err != nil {
			return p, err
		}

		p.Debited = &cents
	}

	return p, nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req updateTransactionRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	patch, err := req.patch()
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	tx, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.svc.SoftDelete(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
