package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustline/internal/arbitration"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/platform/httputil"
	platformstrings "trustline/pkg/platform/strings"
	"trustline/pkg/requestcontext"
)

// Service defines the interface for arbitration operations.
type Service interface {
	CreateArbitration(ctx context.Context, arbiter domain.Address, cosigners []domain.Address, approvals uint32) (arbitration.ArbitrationConfig, error)
	Config(ctx context.Context, arbiter domain.Address) (arbitration.ArbitrationConfig, error)
	Sign(ctx context.Context, cosigner, arbiter, depositor domain.Address, index uint32) (arbitration.ArbitrationEventConfig, error)
	Authorized(ctx context.Context, arbiter, depositor domain.Address, index uint32) (bool, error)
}

// Handler wires arbitration endpoints to the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts arbitration routes. Mutations run behind auth; reads are
// open.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/arbitration/{arbiter}", h.handleGetConfig)
	r.Get("/arbitration/{arbiter}/events/{depositor}/{index}", h.handleAuthorized)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/arbitration", h.handleCreate)
		r.Post("/arbitration/{arbiter}/sign", h.handleSign)
	})
}

type createRequest struct {
	Arbiter   string   `json:"arbiter"`
	Cosigners []string `json:"cosigners"`
	Approvals uint32   `json:"approvals"`
}

type signRequest struct {
	Depositor string `json:"depositor"`
	Index     uint32 `json:"index"`
}

type authorizedResponse struct {
	Authorized bool `json:"authorized"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	arbiter, err := domain.ParseAddress(req.Arbiter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cosigners, err := domain.ParseAddresses(platformstrings.DedupeAndTrim(req.Cosigners))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	config, err := h.service.CreateArbitration(ctx, arbiter, cosigners, req.Approvals)
	if err != nil {
		h.logger.WarnContext(ctx, "create arbitration failed",
			"request_id", requestcontext.RequestID(ctx),
			"arbiter", arbiter,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, config)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	arbiter, err := domain.ParseAddress(chi.URLParam(r, "arbiter"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	config, err := h.service.Config(r.Context(), arbiter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, config)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	arbiter, err := domain.ParseAddress(chi.URLParam(r, "arbiter"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[signRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	depositor, err := domain.ParseAddress(req.Depositor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The signature belongs to the authenticated caller.
	cosigner := requestcontext.ActingAs(ctx)

	event, err := h.service.Sign(ctx, cosigner, arbiter, depositor, req.Index)
	if err != nil {
		h.logger.WarnContext(ctx, "sign arbitration failed",
			"request_id", requestcontext.RequestID(ctx),
			"arbiter", arbiter,
			"cosigner", cosigner,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	arbiter, err := domain.ParseAddress(chi.URLParam(r, "arbiter"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	depositor, err := domain.ParseAddress(chi.URLParam(r, "depositor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw := chi.URLParam(r, "index")
	index, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid index %q", raw))
		return
	}

	authorized, err := h.service.Authorized(r.Context(), arbiter, depositor, uint32(index))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authorizedResponse{Authorized: authorized})
}
