package pin

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/pin/entity"
	"github.com/AlessandraU03/stylepin-api/internal/validate"
)

// Handler exposes HTTP endpoints for pins.
type Handler struct {
	svc       *Service
	validator *validate.Validator
	logger    *zap.SugaredLogger
}

func NewHandler(svc *Service, v *validate.Validator, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validator: v, logger: logger}
}

type listQuery struct {
	Category string `json:"category" validate:"omitempty,oneof=outfit_completo prenda_individual accesorio calzado"`
	Season   string `json:"season" validate:"omitempty,oneof=primavera verano otono invierno todo_el_ano"`
	UserID   string `json:"user_id" validate:"omitempty,max=64"`
	Query    string `json:"q" validate:"omitempty,max=100"`
	Limit    int    `json:"limit" validate:"min=1,max=100"`
	Offset   int    `json:"offset" validate:"min=0"`
}

func (h *Handler) parseQuery(v url.Values) (listQuery, error) {
	q := listQuery{
		Category: v.Get("category"),
		Season:   v.Get("season"),
		UserID:   v.Get("user_id"),
		Query:    v.Get("q"),
		Limit:    entity.DefaultLimit,
	}
	var details []apperror.FieldError
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		raw := v.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			details = append(details, apperror.FieldError{Field: p.name, Message: "must be an integer"})
			continue
		}
		*p.dst = n
	}
	if len(details) > 0 {
		return q, apperror.Validation(details...)
	}
	return q, h.validator.Struct(&q)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	var req CreateInput
	if err := h.validator.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.svc.Create(r.Context(), caller, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.List(r.Context(), entity.Filter{
		UserID:   q.UserID,
		Category: entity.Category(q.Category),
		Season:   entity.Season(q.Season),
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.Search(r.Context(), q.Query, q.Limit, q.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.svc.ListMine(r.Context(), caller, q.Limit, q.Offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	var viewer *auth.Identity
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		viewer = &id
	}
	d, err := h.svc.Get(r.Context(), viewer, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	var req UpdateInput
	if err := h.validator.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.svc.Update(r.Context(), caller, r.PathValue("id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperror.Write(w, r, h.logger, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && h.logger != nil {
		h.logger.Warnw("write response", "err", err)
	}
}
