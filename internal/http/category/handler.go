package category

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/respond"
)

type Handler struct {
	svc *category.Service
}

func NewHandler(svc *category.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(c *category.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: c.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.List(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = toResponse(c)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type createCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	c, err := h.svc.Create(r.Context(), category.CreateParams{Name: req.Name, Color: req.Color})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(c))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
