package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"trustline/internal/billing"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	"trustline/pkg/platform/httputil"
	"trustline/pkg/requestcontext"
)

// Service defines the interface for billing ledger operations.
type Service interface {
	SubmitBill(ctx context.Context, retainor, retainee domain.Address, amount domain.Amount, notes, date string) (billing.Bill, error)
	UnsubmitBill(ctx context.Context, retainor, retainee domain.Address) error
	ResolveBill(ctx context.Context, retainor, retainee domain.Address, status billing.ApprovalStatus, notes, date string) (billing.Receipt, uint32, error)
	ViewBill(ctx context.Context, retainor, retainee domain.Address) (*billing.Bill, error)
	ViewReceipt(ctx context.Context, retainor, retainee domain.Address, index uint32) (*billing.Receipt, error)
	HistoryIndex(ctx context.Context, retainor, retainee domain.Address) (uint32, error)
	ReceiptHistory(ctx context.Context, retainor, retainee domain.Address, limit uint32) ([]billing.Receipt, error)
	ReceiptHistoryRange(ctx context.Context, retainor, retainee domain.Address, start, end uint32) ([]billing.Receipt, error)
	AddRetainerBalance(ctx context.Context, retainor, retainee domain.Address, additional domain.Amount, token domain.Address) (billing.RetainerBalance, error)
	RetainerBalance(ctx context.Context, retainor, retainee domain.Address, token domain.Address) (*billing.RetainerBalance, error)
	RetainerBalances(ctx context.Context, retainor, retainee domain.Address) ([]billing.RetainerBalance, error)
}

// Handler wires billing endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts billing routes. Mutations run behind auth; reads are open.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/billing/{retainor}/{retainee}", func(r chi.Router) {
		r.Get("/bill", h.handleViewBill)
		r.Get("/receipts", h.handleReceiptHistory)
		r.Get("/receipts/{index}", h.handleViewReceipt)
		r.Get("/history-index", h.handleHistoryIndex)
		r.Get("/balance", h.handleBalance)
		r.Get("/balances", h.handleBalances)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/bill", h.handleSubmitBill)
			r.Delete("/bill", h.handleUnsubmitBill)
			r.Post("/resolve", h.handleResolveBill)
			r.Post("/balance", h.handleAddBalance)
		})
	})
}

type submitBillRequest struct {
	Amount domain.Amount `json:"amount"`
	Notes  string        `json:"notes"`
	Date   string        `json:"date"`
}

type resolveBillRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Date   string `json:"date"`
}

type addBalanceRequest struct {
	Amount domain.Amount `json:"amount"`
	Token  string        `json:"token"`
}

type resolveBillResponse struct {
	Receipt billing.Receipt `json:"receipt"`
	Index   uint32          `json:"index"`
}

type historyIndexResponse struct {
	HistoryIndex uint32 `json:"history_index"`
}

func (h *Handler) handleSubmitBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[submitBillRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if req.Date != "" && !govalidator.IsRFC3339(req.Date) && !govalidator.IsISO8601(req.Date) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "date must be an RFC3339 or ISO8601 timestamp"))
		return
	}

	bill, err := h.service.SubmitBill(ctx, retainor, retainee, req.Amount, req.Notes, req.Date)
	if err != nil {
		h.logger.WarnContext(ctx, "submit bill failed",
			"request_id", requestcontext.RequestID(ctx),
			"retainor", retainor,
			"retainee", retainee,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, bill)
}

func (h *Handler) handleUnsubmitBill(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	if err := h.service.UnsubmitBill(r.Context(), retainor, retainee); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResolveBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[resolveBillRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	status, err := billing.ParseApprovalStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, index, err := h.service.ResolveBill(ctx, retainor, retainee, status, req.Notes, req.Date)
	if err != nil {
		h.logger.WarnContext(ctx, "resolve bill failed",
			"request_id", requestcontext.RequestID(ctx),
			"retainor", retainor,
			"retainee", retainee,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolveBillResponse{Receipt: receipt, Index: index})
}

func (h *Handler) handleViewBill(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	bill, err := h.service.ViewBill(r.Context(), retainor, retainee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if bill == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no pending bill"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bill)
}

func (h *Handler) handleViewReceipt(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	receipt, err := h.service.ViewReceipt(r.Context(), retainor, retainee, index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if receipt == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no receipt at this index"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleHistoryIndex(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	index, err := h.service.HistoryIndex(r.Context(), retainor, retainee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyIndexResponse{HistoryIndex: index})
}

// handleReceiptHistory serves both forms: ?limit= for the most-recent slice
// and ?start=&end= for an explicit ascending range.
func (h *Handler) handleReceiptHistory(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var receipts []billing.Receipt
	var err error
	if q.Has("start") || q.Has("end") {
		start, perr := parseIndex(q.Get("start"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		end, perr := parseIndex(q.Get("end"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		receipts, err = h.service.ReceiptHistoryRange(r.Context(), retainor, retainee, start, end)
	} else {
		limit := uint32(0)
		if raw := q.Get("limit"); raw != "" {
			limit, err = parseIndex(raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		receipts, err = h.service.ReceiptHistory(r.Context(), retainor, retainee, limit)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if receipts == nil {
		receipts = []billing.Receipt{}
	}
	httputil.WriteJSON(w, http.StatusOK, receipts)
}

func (h *Handler) handleAddBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[addBalanceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	token, err := domain.ParseAddress(req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.AddRetainerBalance(ctx, retainor, retainee, req.Amount, token)
	if err != nil {
		h.logger.WarnContext(ctx, "add retainer balance failed",
			"request_id", requestcontext.RequestID(ctx),
			"retainor", retainor,
			"retainee", retainee,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	token := domain.ZeroAddress
	if raw := r.URL.Query().Get("token"); raw != "" {
		parsed, err := domain.ParseAddress(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		token = parsed
	}
	balance, err := h.service.RetainerBalance(r.Context(), retainor, retainee, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if balance == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "pair has no funded balance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	retainor, retainee, ok := pairParams(w, r)
	if !ok {
		return
	}
	balances, err := h.service.RetainerBalances(r.Context(), retainor, retainee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if balances == nil {
		balances = []billing.RetainerBalance{}
	}
	httputil.WriteJSON(w, http.StatusOK, balances)
}

func pairParams(w http.ResponseWriter, r *http.Request) (domain.Address, domain.Address, bool) {
	retainor, err := domain.ParseAddress(chi.URLParam(r, "retainor"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	retainee, err := domain.ParseAddress(chi.URLParam(r, "retainee"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	return retainor, retainee, true
}

func parseIndex(raw string) (uint32, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "invalid index %q", raw)
	}
	return uint32(v), nil
}
