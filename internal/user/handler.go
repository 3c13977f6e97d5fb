package user

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/validate"
)

// Handler exposes HTTP endpoints for registration, login and account management.
type Handler struct {
	svc       *Service
	validator *validate.Validator
	logger    *zap.SugaredLogger
}

func NewHandler(svc *Service, v *validate.Validator, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, validator: v, logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := h.validator.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginInput
	if err := h.validator.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	me, err := h.svc.GetMe(r.Context(), id.AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, me)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	var req UpdateProfileInput
	if err := h.validator.Bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	me, err := h.svc.UpdateProfile(r.Context(), id.AccountID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, me)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.DeactivateSelf(r.Context(), id.AccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPublicProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.Unlock(r.Context(), admin.AccountID, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.SetActive(r.Context(), admin.AccountID, r.PathValue("id"), false); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.IdentityFromContext(r.Context())
	if err := h.svc.SetActive(r.Context(), admin.AccountID, r.PathValue("id"), true); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
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
