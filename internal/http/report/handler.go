package report

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/report"
)

// maxTrendMonths bounds the trend window a client may ask for.
const maxTrendMonths = 120

type Handler struct {
	svc *report.Service
	now func() time.Time
}

func NewHandler(svc *report.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/spending", h.spending)
	r.Get("/trend", h.trend)
}

type categoryTotalResponse struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Debited    string    `json:"debited"`
}

type monthTotalResponse struct {
	Month    string `json:"month"`
	Credited string `json:"credited"`
	Debited  string `json:"debited"`
	Net      string `json:"net"`
}

func (h *Handler) spending(w http.ResponseWriter, r *http.Request) {
	from, err := respond.QueryDate(r, "from_date")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	to, err := respond.QueryDate(r, "to_date")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	totals, err := h.svc.CategorySpending(r.Context(), from, to)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]categoryTotalResponse, len(totals))
	for i, t := range totals {
		resp[i] = categoryTotalResponse{
			CategoryID: t.CategoryID,
			Name:       t.Name,
			Color:      t.Color,
			Debited:    money.Format(t.Debited),
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	end := h.now().UTC()

	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse("2006-01", s)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("%w: end must be YYYY-MM", respond.ErrBadRequest))
			return
		}

		end = t
	}

	months, err := respond.QueryInt(r, "months")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if months < 0 || months > maxTrendMonths {
		respond.Error(w, r, fmt.Errorf("%w: months must be between 1 and %d", respond.ErrBadRequest, maxTrendMonths))
		return
	}

	totals, err := h.svc.MonthlyTrend(r.Context(), end, months)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]monthTotalResponse, len(totals))
	for i, t := range totals {
		resp[i] = monthTotalResponse{
			Month:    t.Month.Format("2006-01"),
			Credited: money.Format(t.Credited),
			Debited:  money.Format(t.Debited),
			Net:      money.Format(t.Net()),
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}
