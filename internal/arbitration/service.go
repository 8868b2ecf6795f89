package arbitration

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	arbitrationmetrics "trustline/internal/arbitration/metrics"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/audit/worker"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

// Service runs the arbitration engine: arbiters publish cosigner panels and
// panels collect signatures to release individual escrow receipts.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *arbitrationmetrics.Metrics
	auditCh chan<- audit.Event
	tracer  trace.Tracer
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *arbitrationmetrics.Metrics
	auditCh chan<- audit.Event
}

// Option configures the Service.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *arbitrationmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAudit(ch chan<- audit.Event) Option {
	return func(c *serviceConfig) { c.auditCh = ch }
}

func NewService(store Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: cfg.metrics,
		auditCh: cfg.auditCh,
		tracer:  otel.Tracer("trustline/internal/arbitration"),
	}
}

// CreateArbitration publishes the arbiter's panel. Replacing an existing
// panel is allowed; decisions already under way keep their collected
// signatures but are judged against the new threshold.
func (s *Service) CreateArbitration(ctx context.Context, arbiter domain.Address, cosigners []domain.Address, approvals uint32) (ArbitrationConfig, error) {
	ctx, span := s.tracer.Start(ctx, "arbitration.CreateArbitration")
	defer span.End()

	if err := requireActingAs(ctx, arbiter); err != nil {
		return ArbitrationConfig{}, err
	}
	if len(cosigners) == 0 {
		return ArbitrationConfig{}, dErrors.New(dErrors.CodeValidation, "at least one cosigner is required")
	}
	if approvals == 0 {
		return ArbitrationConfig{}, dErrors.New(dErrors.CodeValidation, "approvals must be at least one")
	}
	if int(approvals) > len(cosigners) {
		return ArbitrationConfig{}, dErrors.New(dErrors.CodeValidation, "approvals cannot exceed the number of cosigners")
	}

	config := ArbitrationConfig{Cosigners: slices.Clone(cosigners), Approvals: approvals}
	if err := s.store.SetConfig(ctx, arbiter, config); err != nil {
		return ArbitrationConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store arbitration config")
	}

	s.metrics.IncPanelCreated()
	s.emit(ctx, arbiter, "arbitration:"+arbiter.String(), audit.ActionArbitrationMade, "")
	return config, nil
}

// Config returns the arbiter's panel.
func (s *Service) Config(ctx context.Context, arbiter domain.Address) (ArbitrationConfig, error) {
	config, err := s.store.GetConfig(ctx, arbiter)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ArbitrationConfig{}, dErrors.New(dErrors.CodeNotFound, "unknown arbiter")
	}
	if err != nil {
		return ArbitrationConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load arbitration config")
	}
	return config, nil
}

// Sign records the cosigner's signature on one release decision. Signing
// twice is not an error and never double-counts.
func (s *Service) Sign(ctx context.Context, cosigner, arbiter, depositor domain.Address, index uint32) (ArbitrationEventConfig, error) {
	ctx, span := s.tracer.Start(ctx, "arbitration.Sign")
	defer span.End()

	if err := requireActingAs(ctx, cosigner); err != nil {
		return ArbitrationEventConfig{}, err
	}
	config, err := s.Config(ctx, arbiter)
	if err != nil {
		return ArbitrationEventConfig{}, err
	}
	if !config.Member(cosigner) {
		return ArbitrationEventConfig{}, dErrors.New(dErrors.CodeUnauthorized, "not a cosigner of this arbitration")
	}

	key := EventKey{Arbiter: arbiter, Depositor: depositor, Index: index}
	event, err := s.store.AddSignature(ctx, key, cosigner)
	if err != nil {
		return ArbitrationEventConfig{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record signature")
	}

	s.metrics.IncSignature()
	s.emit(ctx, cosigner, "arbitration_event:"+key.String(), audit.ActionArbitrationSign, "")
	return event, nil
}

// Authorized reports whether the arbiter's panel has gathered enough
// signatures to release the given receipt. Cosigners dropped from the panel
// since signing no longer count.
func (s *Service) Authorized(ctx context.Context, arbiter, depositor domain.Address, index uint32) (bool, error) {
	config, err := s.Config(ctx, arbiter)
	if err != nil {
		return false, err
	}

	key := EventKey{Arbiter: arbiter, Depositor: depositor, Index: index}
	event, err := s.store.GetEvent(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load arbitration event")
	}

	var valid uint32
	for _, sig := range event.Signatures {
		if config.Member(sig) {
			valid++
		}
	}
	return valid >= config.Approvals, nil
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
