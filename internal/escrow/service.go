package escrow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	escrowmetrics "trustline/internal/escrow/metrics"
	"trustline/internal/token"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/audit/worker"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

// ArbitrationAuthorizer answers whether an arbiter's cosigners have released
// a specific receipt. Wired to the arbitration engine; nil disables the
// override entirely.
type ArbitrationAuthorizer interface {
	Authorized(ctx context.Context, arbiter, depositor domain.Address, index uint32) (bool, error)
}

// Service mediates time-bound escrow deposits. Value moves through the token
// transferor before receipt state mutates, so a failed transfer leaves the
// ledger untouched.
type Service struct {
	store       Store
	transferor  token.Transferor
	arbitration ArbitrationAuthorizer
	logger      *slog.Logger
	metrics     *escrowmetrics.Metrics
	auditCh     chan<- audit.Event
	tracer      trace.Tracer
}

type serviceConfig struct {
	arbitration ArbitrationAuthorizer
	logger      *slog.Logger
	metrics     *escrowmetrics.Metrics
	auditCh     chan<- audit.Event
}

// Option configures the Service.
type Option func(*serviceConfig)

// WithArbitration enables the arbitration override on withdrawals.
func WithArbitration(a ArbitrationAuthorizer) Option {
	return func(c *serviceConfig) { c.arbitration = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *escrowmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAudit(ch chan<- audit.Event) Option {
	return func(c *serviceConfig) { c.auditCh = ch }
}

// NewService seeds the admin on first construction. A store that already
// holds an admin keeps it; the seed only applies to a fresh store.
func NewService(store Store, transferor token.Transferor, admin domain.Address, opts ...Option) (*Service, error) {
	if admin.IsZero() {
		return nil, errors.New("escrow: admin address is required")
	}
	if err := store.SeedAdmin(context.Background(), admin); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return nil, err
	}

	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		transferor:  transferor,
		arbitration: cfg.arbitration,
		logger:      logger,
		metrics:     cfg.metrics,
		auditCh:     cfg.auditCh,
		tracer:      otel.Tracer("trustline/internal/escrow"),
	}, nil
}

// Admin returns the current admin address.
func (s *Service) Admin(ctx context.Context) (domain.Address, error) {
	admin, err := s.store.GetAdmin(ctx)
	if err != nil {
		return domain.ZeroAddress, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin")
	}
	return admin, nil
}

// SetAdmin hands the gate to a new admin. Only the current admin may do so.
func (s *Service) SetAdmin(ctx context.Context, newAdmin domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "escrow.SetAdmin")
	defer span.End()

	current, err := s.Admin(ctx)
	if err != nil {
		return err
	}
	if err := requireActingAs(ctx, current); err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "new admin address is required")
	}
	if err := s.store.SetAdmin(ctx, newAdmin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set admin")
	}
	s.emit(ctx, current, "escrow_admin", audit.ActionAdminChanged, newAdmin.String())
	return nil
}

// Deposit locks value under a time bound and writes a receipt at the
// depositor's next dense index. The transfer happens first; a receipt is
// only recorded for value the escrow account actually holds.
func (s *Service) Deposit(ctx context.Context, depositor, tok domain.Address, amount domain.Amount, timeBound TimeBound) (ReceiptConfig, uint32, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Deposit")
	defer span.End()

	if err := requireActingAs(ctx, depositor); err != nil {
		return ReceiptConfig{}, 0, err
	}
	if amount.IsNegative() {
		return ReceiptConfig{}, 0, dErrors.New(dErrors.CodeNegativeAmount, "deposit amount must not be negative")
	}
	if tok.IsZero() {
		return ReceiptConfig{}, 0, dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}
	if _, err := ParseTimeBoundKind(string(timeBound.Kind)); err != nil {
		return ReceiptConfig{}, 0, err
	}

	if err := s.transferor.Transfer(ctx, tok, depositor, token.EscrowAccount, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return ReceiptConfig{}, 0, dErrors.New(dErrors.CodeConflict, "depositor has insufficient token balance")
		}
		return ReceiptConfig{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "token transfer failed")
	}

	receipt := ReceiptConfig{
		Amount:    amount,
		Depositor: depositor,
		Token:     tok,
		TimeBound: timeBound,
	}
	index, err := s.store.AppendReceipt(ctx, receipt)
	if err != nil {
		return ReceiptConfig{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store receipt")
	}

	s.metrics.IncDeposit()
	s.emit(ctx, depositor, receiptSubject(depositor, index), audit.ActionEscrowDeposited, amount.String())
	return receipt, index, nil
}

// Receipt returns the live receipt at the depositor's index.
func (s *Service) Receipt(ctx context.Context, depositor domain.Address, index uint32) (ReceiptConfig, error) {
	receipt, err := s.store.GetReceipt(ctx, depositor, index)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ReceiptConfig{}, dErrors.New(dErrors.CodeNoReceiptsFound, "no receipt at this index")
	}
	if err != nil {
		return ReceiptConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return receipt, nil
}

// ReceiptCount returns how many receipts the depositor has ever created.
// Withdrawn receipts still count; indices are never reused.
func (s *Service) ReceiptCount(ctx context.Context, depositor domain.Address) (uint32, error) {
	count, err := s.store.ReceiptCount(ctx, depositor)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt count")
	}
	return count, nil
}

// Receipts returns the depositor's live receipts keyed by index.
func (s *Service) Receipts(ctx context.Context, depositor domain.Address) (map[uint32]ReceiptConfig, error) {
	receipts, err := s.store.ListReceipts(ctx, depositor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
	}
	return receipts, nil
}

// Withdraw pays out from a receipt. A nil amount draws the whole receipt.
// The time predicate is evaluated against the request clock; when it fails,
// a named arbiter whose cosigners have released this receipt may override.
// Full withdrawal deletes the receipt so its index cannot pay twice.
func (s *Service) Withdraw(ctx context.Context, depositor domain.Address, index uint32, amount *domain.Amount, arbiter domain.Address) (ReceiptConfig, domain.Amount, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Withdraw")
	defer span.End()

	acting := requestcontext.ActingAs(ctx)
	if acting.IsZero() {
		return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeUnauthorized, "no authenticated identity")
	}
	if acting != depositor {
		return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeNotAuthorizedToWithdraw, "only the depositor may withdraw this receipt")
	}
	if amount != nil && amount.IsNegative() {
		return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeNegativeAmount, "withdrawal amount must not be negative")
	}

	receipt, err := s.store.GetReceipt(ctx, depositor, index)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeNoReceiptsFound, "no receipt at this index")
	}
	if err != nil {
		return ReceiptConfig{}, domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	if amount != nil && amount.Cmp(receipt.Amount) > 0 {
		return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeNegativeAmount, "withdrawal exceeds the receipt amount")
	}

	if !receipt.TimeBound.Satisfied(requestcontext.Now(ctx)) {
		overridden, err := s.arbitrationOverride(ctx, arbiter, depositor, index)
		if err != nil {
			return ReceiptConfig{}, domain.Amount{}, err
		}
		if !overridden {
			return ReceiptConfig{}, domain.Amount{}, dErrors.New(dErrors.CodeTimePredicateUnfulfilled, "time predicate does not permit withdrawal")
		}
	}

	withdrawal := receipt.Amount
	if amount != nil {
		withdrawal = *amount
	}
	if err := s.transferor.Transfer(ctx, receipt.Token, token.EscrowAccount, depositor, withdrawal); err != nil {
		return ReceiptConfig{}, domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "token transfer failed")
	}

	kind := "full"
	if amount != nil && amount.Cmp(receipt.Amount) < 0 {
		kind = "partial"
		if err := s.store.SetReceiptAmount(ctx, depositor, index, receipt.Amount.Sub(*amount)); err != nil {
			return ReceiptConfig{}, domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update receipt")
		}
	} else {
		if err := s.store.DeleteReceipt(ctx, depositor, index); err != nil {
			return ReceiptConfig{}, domain.Amount{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete receipt")
		}
	}

	s.metrics.IncWithdrawal(kind)
	s.emit(ctx, depositor, receiptSubject(depositor, index), audit.ActionEscrowWithdrawn, withdrawal.String())
	return receipt, withdrawal, nil
}

// arbitrationOverride consults the arbitration engine when an arbiter was
// named and the engine is wired. An unknown arbiter fails closed.
func (s *Service) arbitrationOverride(ctx context.Context, arbiter, depositor domain.Address, index uint32) (bool, error) {
	if arbiter.IsZero() || s.arbitration == nil {
		return false, nil
	}
	authorized, err := s.arbitration.Authorized(ctx, arbiter, depositor, index)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return authorized, nil
}

func receiptSubject(depositor domain.Address, index uint32) string {
	return "escrow_receipt:" + depositor.String() + ":" + strconv.FormatUint(uint64(index), 10)
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
