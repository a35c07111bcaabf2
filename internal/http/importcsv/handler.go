package importcsv

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

const maxUploadBytes = 10 << 20

type Handler struct {
	svc *importer.Service
}

func NewHandler(svc *importer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type rowResponse struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Date        string     `json:"transaction_date"`
	CategoryID  uuid.UUID  `json:"category_id"`
	Description string     `json:"description"`
	Credited    string     `json:"credited"`
	Debited     string     `json:"debited"`
	Balance     string     `json:"running_balance,omitempty"`
}

type importResponse struct {
	Format   string        `json:"format"`
	DryRun   bool          `json:"dry_run"`
	Imported int           `json:"imported"`
	Rows     []rowResponse `json:"rows"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	opts, err := parseOptions(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.svc.Import(r.Context(), file, opts)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := importResponse{
		Format:   result.Format,
		DryRun:   opts.DryRun,
		Imported: len(result.Created),
		Rows:     make([]rowResponse, 0, len(result.Params)),
	}

	if result.Created != nil {
		for _, tx := range result.Created {
			resp.Rows = append(resp.Rows, fromTransaction(tx))
		}
	} else {
		for _, p := range result.Params {
			resp.Rows = append(resp.Rows, fromParams(p))
		}
	}

	status := http.StatusCreated
	if opts.DryRun {
		status = http.StatusOK
	}

	respond.JSON(w, status, resp)
}

func parseOptions(r *http.Request) (importer.Options, error) {
	var opts importer.Options

	if s := r.FormValue("default_category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return opts, fmt.Errorf("%w: default_category_id must be a UUID", respond.ErrBadRequest)
		}

		opts.DefaultCategoryID = &id
	}

	if s := r.FormValue("dry_run"); s != "" {
		dry, err := strconv.ParseBool(s)
		if err != nil {
			return opts, fmt.Errorf("%w: dry_run must be a boolean", respond.ErrBadRequest)
		}

		opts.DryRun = dry
	}

	return opts, nil
}

func fromParams(p transaction.CreateParams) rowResponse {
	resp := rowResponse{
		Date:        p.Date.Format(time.DateOnly),
		Description: p.Description,
		Credited:    money.Format(p.Credited),
		Debited:     money.Format(p.Debited),
	}

	if p.CategoryID != nil {
		resp.CategoryID = *p.CategoryID
	}

	return resp
}

func fromTransaction(tx *transaction.Transaction) rowResponse {
	resp := rowResponse{
		ID:          &tx.ID,
		Date:        tx.Date.Format(time.DateOnly),
		Description: tx.Description,
		Credited:    money.Format(tx.Credited),
		Debited:     money.Format(tx.Debited),
		Balance:     money.Format(tx.Balance),
	}

	if tx.CategoryID != nil {
		resp.CategoryID = *tx.CategoryID
	}

	return resp
}
