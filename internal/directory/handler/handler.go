package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"trustline/internal/directory"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/platform/httputil"
	platformstrings "trustline/pkg/platform/strings"
	"trustline/pkg/requestcontext"
)

// Service defines the interface for directory operations.
type Service interface {
	SetRetainorInfo(ctx context.Context, retainor domain.Address, name string, retainees []domain.Address) error
	SetRetaineeInfo(ctx context.Context, retainee domain.Address, name string, retainors []domain.Address) error
	RetainorInfo(ctx context.Context, retainor domain.Address) (directory.RetainorInfo, error)
	RetaineeInfo(ctx context.Context, retainee domain.Address) (directory.RetaineeInfo, error)
}

// Handler wires directory endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts directory routes. Writes run behind auth; reads are open.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/directory/retainors/{address}", h.handleGetRetainor)
	r.Get("/directory/retainees/{address}", h.handleGetRetainee)
	r.With(requireAuth).Put("/directory/retainors/{address}", h.handleSetRetainor)
	r.With(requireAuth).Put("/directory/retainees/{address}", h.handleSetRetainee)
}

type setInfoRequest struct {
	Name string `json:"name"`
	// Counterparties is the full replacement list; retainees for a retainor
	// entry, retainors for a retainee entry.
	Counterparties []string `json:"counterparties"`
}

func (h *Handler) handleSetRetainor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[setInfoRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if !govalidator.StringLength(req.Name, "1", "255") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name must be 1-255 characters"))
		return
	}
	counterparties, err := domain.ParseAddresses(platformstrings.DedupeAndTrim(req.Counterparties))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetRetainorInfo(ctx, addr, req.Name, counterparties); err != nil {
		h.logger.WarnContext(ctx, "set retainor info failed",
			"request_id", requestID,
			"retainor", addr,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetRetainee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[setInfoRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if !govalidator.StringLength(req.Name, "1", "255") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name must be 1-255 characters"))
		return
	}
	counterparties, err := domain.ParseAddresses(platformstrings.DedupeAndTrim(req.Counterparties))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetRetaineeInfo(ctx, addr, req.Name, counterparties); err != nil {
		h.logger.WarnContext(ctx, "set retainee info failed",
			"request_id", requestID,
			"retainee", addr,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRetainor(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	info, err := h.service.RetainorInfo(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleGetRetainee(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	info, err := h.service.RetaineeInfo(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}
