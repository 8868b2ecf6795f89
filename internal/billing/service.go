package billing

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	billingmetrics "trustline/internal/billing/metrics"
	"trustline/internal/token"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/audit/worker"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

// Service mediates the billing ledger: one pending bill per pair, an
// append-only receipt history, and informational retainer balances.
//
// The balance is informational only. Submitting a bill never checks it and
// resolving a bill never debits it; moving the settlement value is the
// parties' business, outside this ledger.
type Service struct {
	store      Store
	transferor token.Transferor
	policy     FundingPolicy
	logger     *slog.Logger
	metrics    *billingmetrics.Metrics
	auditCh    chan<- audit.Event
	tracer     trace.Tracer
}

type serviceConfig struct {
	policy  FundingPolicy
	logger  *slog.Logger
	metrics *billingmetrics.Metrics
	auditCh chan<- audit.Event
}

// Option configures the Service.
type Option func(*serviceConfig)

// WithFundingPolicy sets which party may fund retainer balances.
func WithFundingPolicy(p FundingPolicy) Option {
	return func(c *serviceConfig) { c.policy = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *billingmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAudit(ch chan<- audit.Event) Option {
	return func(c *serviceConfig) { c.auditCh = ch }
}

func NewService(store Store, transferor token.Transferor, opts ...Option) *Service {
	cfg := &serviceConfig{policy: FundByEither}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		transferor: transferor,
		policy:     cfg.policy,
		logger:     logger,
		metrics:    cfg.metrics,
		auditCh:    cfg.auditCh,
		tracer:     otel.Tracer("trustline/internal/billing"),
	}
}

// SubmitBill places a bill into the pair's pending slot. Only one bill may be
// pending per pair at a time. The bill captures the token of the pair's
// funded balance when the pair holds exactly one; otherwise the token is left
// zero and the parties settle denomination out of band.
func (s *Service) SubmitBill(ctx context.Context, retainor, retainee domain.Address, amount domain.Amount, notes, date string) (Bill, error) {
	ctx, span := s.tracer.Start(ctx, "billing.SubmitBill")
	defer span.End()

	if err := requireActingAs(ctx, retainor); err != nil {
		return Bill{}, err
	}
	if amount.IsNegative() {
		return Bill{}, dErrors.New(dErrors.CodeNegativeAmount, "bill amount must not be negative")
	}

	pair := Pair{Retainor: retainor, Retainee: retainee}
	bill := Bill{
		Amount: amount,
		Token:  s.inferToken(ctx, pair),
		Notes:  notes,
		Date:   date,
	}
	err := s.store.PutPendingBill(ctx, pair, bill)
	if errors.Is(err, sentinel.ErrConflict) {
		return Bill{}, dErrors.New(dErrors.CodeConflict, "a bill is already pending for this pair")
	}
	if err != nil {
		return Bill{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pending bill")
	}

	s.metrics.IncSubmitted()
	s.emit(ctx, retainor, "pending_bill:"+pair.String(), audit.ActionBillSubmitted, amount.String())
	return bill, nil
}

// UnsubmitBill withdraws the pair's pending bill. Clearing an empty slot
// succeeds; the outcome is the same either way.
func (s *Service) UnsubmitBill(ctx context.Context, retainor, retainee domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "billing.UnsubmitBill")
	defer span.End()

	if err := requireActingAs(ctx, retainor); err != nil {
		return err
	}
	pair := Pair{Retainor: retainor, Retainee: retainee}
	if err := s.store.ClearPendingBill(ctx, pair); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear pending bill")
	}
	s.metrics.IncUnsubmitted()
	s.emit(ctx, retainor, "pending_bill:"+pair.String(), audit.ActionBillUnsubmitted, "")
	return nil
}

// ResolveBill moves the pending bill into history with the retainee's
// verdict and frees the slot, all atomically. The receipt index is dense
// from zero.
func (s *Service) ResolveBill(ctx context.Context, retainor, retainee domain.Address, status ApprovalStatus, notes, date string) (Receipt, uint32, error) {
	ctx, span := s.tracer.Start(ctx, "billing.ResolveBill")
	defer span.End()

	if err := requireActingAs(ctx, retainee); err != nil {
		return Receipt{}, 0, err
	}
	if _, err := ParseApprovalStatus(string(status)); err != nil {
		return Receipt{}, 0, err
	}

	pair := Pair{Retainor: retainor, Retainee: retainee}
	receipt, index, err := s.store.ResolvePending(ctx, pair, status, notes, date)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Receipt{}, 0, dErrors.New(dErrors.CodeNotFound, "no pending bill for this pair")
	}
	if err != nil {
		return Receipt{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve bill")
	}

	s.metrics.IncResolved(string(status))
	s.emit(ctx, retainee, "pending_bill:"+pair.String(), audit.ActionBillResolved, string(status))
	return receipt, index, nil
}

// ViewBill returns the pending bill, or nil when the slot is empty.
func (s *Service) ViewBill(ctx context.Context, retainor, retainee domain.Address) (*Bill, error) {
	bill, err := s.store.GetPendingBill(ctx, Pair{Retainor: retainor, Retainee: retainee})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending bill")
	}
	return &bill, nil
}

// ViewReceipt returns the receipt at index, or nil when none was recorded
// there.
func (s *Service) ViewReceipt(ctx context.Context, retainor, retainee domain.Address, index uint32) (*Receipt, error) {
	receipt, err := s.store.GetReceipt(ctx, Pair{Retainor: retainor, Retainee: retainee}, index)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return &receipt, nil
}

// HistoryIndex returns the number of receipts recorded for the pair.
func (s *Service) HistoryIndex(ctx context.Context, retainor, retainee domain.Address) (uint32, error) {
	index, err := s.store.HistoryIndex(ctx, Pair{Retainor: retainor, Retainee: retainee})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history index")
	}
	return index, nil
}

// ReceiptHistory returns up to limit receipts, most recent first. Limit zero
// means the whole history.
func (s *Service) ReceiptHistory(ctx context.Context, retainor, retainee domain.Address, limit uint32) ([]Receipt, error) {
	pair := Pair{Retainor: retainor, Retainee: retainee}
	index, err := s.store.HistoryIndex(ctx, pair)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history index")
	}
	if index == 0 {
		return nil, nil
	}
	start := uint32(0)
	if limit > 0 && index > limit {
		start = index - limit
	}
	receipts, err := s.store.ReceiptRange(ctx, pair, start, index-1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipts")
	}
	for i, j := 0, len(receipts)-1; i < j; i, j = i+1, j-1 {
		receipts[i], receipts[j] = receipts[j], receipts[i]
	}
	return receipts, nil
}

// ReceiptHistoryRange returns receipts for indices start..end inclusive, in
// ascending order. Indices with no receipt are skipped rather than erroring.
func (s *Service) ReceiptHistoryRange(ctx context.Context, retainor, retainee domain.Address, start, end uint32) ([]Receipt, error) {
	receipts, err := s.store.ReceiptRange(ctx, Pair{Retainor: retainor, Retainee: retainee}, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipts")
	}
	return receipts, nil
}

// AddRetainerBalance funds the pair's balance in the given token, moving the
// value into the escrow account before the record mutates. Which party may
// fund is a deployment policy.
func (s *Service) AddRetainerBalance(ctx context.Context, retainor, retainee domain.Address, additional domain.Amount, tok domain.Address) (RetainerBalance, error) {
	ctx, span := s.tracer.Start(ctx, "billing.AddRetainerBalance")
	defer span.End()

	funder, err := s.requireFunder(ctx, retainor, retainee)
	if err != nil {
		return RetainerBalance{}, err
	}
	if additional.IsNegative() {
		return RetainerBalance{}, dErrors.New(dErrors.CodeNegativeAmount, "funding amount must not be negative")
	}
	if tok.IsZero() {
		return RetainerBalance{}, dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}

	if err := s.transferor.Transfer(ctx, tok, funder, token.EscrowAccount, additional); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return RetainerBalance{}, dErrors.New(dErrors.CodeConflict, "funder has insufficient token balance")
		}
		return RetainerBalance{}, dErrors.Wrap(err, dErrors.CodeInternal, "token transfer failed")
	}

	pair := Pair{Retainor: retainor, Retainee: retainee}
	balance, err := s.store.AddBalance(ctx, pair, tok, additional)
	if err != nil {
		return RetainerBalance{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update balance")
	}

	s.metrics.IncFunded()
	s.emit(ctx, funder, "retainer_balance:"+pair.String()+":"+tok.String(), audit.ActionBalanceFunded, additional.String())
	return balance, nil
}

// RetainerBalance returns the pair's balance in the given token, or nil when
// never funded. A zero token resolves to the pair's single record when there
// is exactly one; with several records the token must be named.
func (s *Service) RetainerBalance(ctx context.Context, retainor, retainee domain.Address, tok domain.Address) (*RetainerBalance, error) {
	pair := Pair{Retainor: retainor, Retainee: retainee}
	if tok.IsZero() {
		balances, err := s.store.ListBalances(ctx, pair)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list balances")
		}
		switch len(balances) {
		case 0:
			return nil, nil
		case 1:
			return &balances[0], nil
		default:
			return nil, dErrors.New(dErrors.CodeBadRequest, "pair holds balances in several tokens; name one")
		}
	}
	balance, err := s.store.GetBalance(ctx, pair, tok)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return &balance, nil
}

// RetainerBalances returns every token record for the pair, token ascending.
func (s *Service) RetainerBalances(ctx context.Context, retainor, retainee domain.Address) ([]RetainerBalance, error) {
	balances, err := s.store.ListBalances(ctx, Pair{Retainor: retainor, Retainee: retainee})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list balances")
	}
	return balances, nil
}

// inferToken picks the bill's denomination from the pair's funded balance.
// Zero or several funded tokens leave the denomination unset.
func (s *Service) inferToken(ctx context.Context, pair Pair) domain.Address {
	balances, err := s.store.ListBalances(ctx, pair)
	if err != nil || len(balances) != 1 {
		return domain.ZeroAddress
	}
	return balances[0].Token
}

// requireFunder returns the acting party when the funding policy allows it
// to fund this pair.
func (s *Service) requireFunder(ctx context.Context, retainor, retainee domain.Address) (domain.Address, error) {
	acting := requestcontext.ActingAs(ctx)
	if acting.IsZero() {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "no authenticated identity")
	}
	allowed := false
	switch s.policy {
	case FundByRetainor:
		allowed = acting == retainor
	case FundByRetainee:
		allowed = acting == retainee
	default:
		allowed = acting == retainor || acting == retainee
	}
	if !allowed {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeForbidden, "caller may not fund this pair")
	}
	return acting, nil
}

func (s *Service) emit(ctx context.Context, actor domain.Address, subject string, action audit.Action, reason string) {
	if s.auditCh == nil {
		return
	}
	ok := worker.Emit(s.auditCh, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Actor:     actor,
		Subject:   subject,
		Action:    action,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if !ok {
		s.logger.WarnContext(ctx, "audit inbox full, event dropped", "action", action)
	}
}

// requireActingAs enforces that the authenticated caller is the given party.
func requireActingAs(ctx context.Context, required domain.Address) error {
	acting := requestcontext.ActingAs(ctx)
	if acting.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "no authenticated identity")
	}
	if acting != required {
		return dErrors.Newf(dErrors.CodeForbidden, "caller must act as %s", required)
	}
	return nil
}
