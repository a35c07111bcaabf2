package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

type Handler struct {
	svc *export.Service
	now func() time.Time
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/csv", h.csv)
	r.Get("/digest", h.digest)
}

func parseFilter(r *http.Request) (export.Filter, error) {
	var (
		f   transaction.SummaryFilter
		err error
	)

	if f.CategoryID, err = respond.QueryUUID(r, "category_id"); err != nil {
		return export.Filter{}, err
	}

	if f.FromDate, err = respond.QueryDate(r, "from_date"); err != nil {
		return export.Filter{}, err
	}

	if f.ToDate, err = respond.QueryDate(r, "to_date"); err != nil {
		return export.Filter{}, err
	}

	return export.Filter{SummaryFilter: f}, nil
}

func (h *Handler) csv(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// Buffer so a failing read can still turn into an error status.
	var buf bytes.Buffer

	n, err := h.svc.WriteCSV(r.Context(), &buf, filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"spendtrack_%s.csv\"", h.now().Format("20060102")))

	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export", "rows", n, "error", err)
	}
}

func (h *Handler) digest(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	txs, err := h.svc.Collect(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := w.Write([]byte(export.Digest(txs))); err != nil {
		slog.ErrorContext(r.Context(), "failed to write digest", "error", err)
	}
}
