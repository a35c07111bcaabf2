package rules

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
)

type Handler struct {
	svc *rules.Service
}

func NewHandler(svc *rules.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/suggest", h.suggest)
	r.Post("/", h.learn)
}

type ruleResponse struct {
	ID         uuid.UUID `json:"id"`
	Pattern    string    `json:"pattern"`
	CategoryID uuid.UUID `json:"category_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toResponse(r *rules.Rule) ruleResponse {
	return ruleResponse{
		ID:         r.ID,
		Pattern:    r.Pattern,
		CategoryID: r.CategoryID,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.List(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]ruleResponse, len(all))
	for i, rule := range all {
		resp[i] = toResponse(rule)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type suggestResponse struct {
	Description string     `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	desc := r.URL.Query().Get("description")
	if desc == "" {
		http.Error(w, "description query parameter is required", http.StatusBadRequest)
		return
	}

	id, ok, err := h.svc.Suggest(r.Context(), desc)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := suggestResponse{Description: desc}
	if ok {
		resp.CategoryID = &id
	}

	respond.JSON(w, http.StatusOK, resp)
}

type learnRequest struct {
	Pattern    string    `json:"pattern" validate:"required,max=200"`
	CategoryID uuid.UUID `json:"category_id" validate:"required"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	rule, err := h.svc.Learn(r.Context(), req.Pattern, req.CategoryID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(rule))
}
