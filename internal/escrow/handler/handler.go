package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trustline/internal/escrow"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// Service defines the interface for escrow operations.
type Service interface {
	Admin(ctx context.Context) (domain.Address, error)
	SetAdmin(ctx context.Context, newAdmin domain.Address) error
	Deposit(ctx context.Context, depositor, token domain.Address, amount domain.Amount, timeBound escrow.TimeBound) (escrow.ReceiptConfig, uint32, error)
	Receipt(ctx context.Context, depositor domain.Address, index uint32) (escrow.ReceiptConfig, error)
	ReceiptCount(ctx context.Context, depositor domain.Address) (uint32, error)
	Receipts(ctx context.Context, depositor domain.Address) (map[uint32]escrow.ReceiptConfig, error)
	Withdraw(ctx context.Context, depositor domain.Address, index uint32, amount *domain.Amount, arbiter domain.Address) (escrow.ReceiptConfig, domain.Amount, error)
}

// Handler wires escrow endpoints to the escrow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts escrow routes. Mutations run behind auth; reads are open.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/escrow/admin", h.handleGetAdmin)
	r.Get("/escrow/receipts/{depositor}", h.handleListReceipts)
	r.Get("/escrow/receipts/{depositor}/{index}", h.handleGetReceipt)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Put("/escrow/admin", h.handleSetAdmin)
		r.Post("/escrow/receipts", h.handleDeposit)
		r.Post("/escrow/receipts/{depositor}/{index}/withdraw", h.handleWithdraw)
	})
}

type timeBoundRequest struct {
	Kind      string `json:"kind"`
	Timestamp uint64 `json:"timestamp"`
}

type depositRequest struct {
	Depositor string           `json:"depositor"`
	Token     string           `json:"token"`
	Amount    domain.Amount    `json:"amount"`
	TimeBound timeBoundRequest `json:"time_bound"`
}

type depositResponse struct {
	Receipt escrow.ReceiptConfig `json:"receipt"`
	Index   uint32               `json:"index"`
}

type withdrawRequest struct {
	// Amount absent or null draws the whole receipt.
	Amount  *domain.Amount `json:"amount"`
	Arbiter string         `json:"arbiter"`
}

type withdrawResponse struct {
	Receipt   escrow.ReceiptConfig `json:"receipt"`
	Withdrawn domain.Amount        `json:"withdrawn"`
}

type adminResponse struct {
	Admin domain.Address `json:"admin"`
}

type setAdminRequest struct {
	Admin string `json:"admin"`
}

type receiptListResponse struct {
	Count    uint32                          `json:"count"`
	Receipts map[uint32]escrow.ReceiptConfig `json:"receipts"`
}

func (h *Handler) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := h.service.Admin(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adminResponse{Admin: admin})
}

func (h *Handler) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[setAdminRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	admin, err := domain.ParseAddress(req.Admin)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetAdmin(ctx, admin); err != nil {
		h.logger.WarnContext(ctx, "set admin failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[depositRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	depositor, err := domain.ParseAddress(req.Depositor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := domain.ParseAddress(req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := escrow.ParseTimeBoundKind(req.TimeBound.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bound := escrow.TimeBound{Kind: kind, Timestamp: domain.Timestamp(req.TimeBound.Timestamp)}

	receipt, index, err := h.service.Deposit(ctx, depositor, tok, req.Amount, bound)
	if err != nil {
		h.logger.WarnContext(ctx, "deposit failed",
			"request_id", requestcontext.RequestID(ctx),
			"depositor", depositor,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, depositResponse{Receipt: receipt, Index: index})
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	depositor, index, ok := receiptParams(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.Receipt(r.Context(), depositor, index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	depositor, err := domain.ParseAddress(chi.URLParam(r, "depositor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.ReceiptCount(r.Context(), depositor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	receipts, err := h.service.Receipts(r.Context(), depositor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receiptListResponse{Count: count, Receipts: receipts})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	depositor, index, ok := receiptParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[withdrawRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	arbiter := domain.ZeroAddress
	if req.Arbiter != "" {
		parsed, err := domain.ParseAddress(req.Arbiter)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		arbiter = parsed
	}

	receipt, withdrawn, err := h.service.Withdraw(ctx, depositor, index, req.Amount, arbiter)
	if err != nil {
		h.logger.WarnContext(ctx, "withdraw failed",
			"request_id", requestcontext.RequestID(ctx),
			"depositor", depositor,
			"index", index,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawResponse{Receipt: receipt, Withdrawn: withdrawn})
}

func receiptParams(w http.ResponseWriter, r *http.Request) (domain.Address, uint32, bool) {
	depositor, err := domain.ParseAddress(chi.URLParam(r, "depositor"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", 0, false
	}
	raw := chi.URLParam(r, "index")
	index, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid index %q", raw))
		return "", 0, false
	}
	return depositor, uint32(index), true
}
