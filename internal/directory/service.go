package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	directorymetrics "trustline/internal/directory/metrics"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/audit/worker"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/requestcontext"
)

// Service mediates directory reads and writes. Writers must act as the
// address they are writing; reads are unrestricted.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *directorymetrics.Metrics
	auditCh chan<- audit.Event
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *directorymetrics.Metrics
	auditCh chan<- audit.Event
}

// Option configures the Service.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *directorymetrics.Metrics) Option {
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
	}
}

// SetRetainorInfo replaces the caller's retainor profile wholesale. It never
// touches the counter-parties' retainee entries; each side of a relationship
// maintains its own list.
func (s *Service) SetRetainorInfo(ctx context.Context, retainor domain.Address, name string, retainees []domain.Address) error {
	if err := requireActingAs(ctx, retainor); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	info := RetainorInfo{Name: name, Retainees: retainees}
	if err := s.store.SetRetainorInfo(ctx, retainor, info); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store retainor info")
	}

	s.metrics.IncRetainorSet()
	s.emit(ctx, retainor, "retainor:"+retainor.String(), audit.ActionRetainorInfoSet, name)
	return nil
}

// SetRetaineeInfo is the symmetric write for the retainee side.
func (s *Service) SetRetaineeInfo(ctx context.Context, retainee domain.Address, name string, retainors []domain.Address) error {
	if err := requireActingAs(ctx, retainee); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	info := RetaineeInfo{Name: name, Retainors: retainors}
	if err := s.store.SetRetaineeInfo(ctx, retainee, info); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store retainee info")
	}

	s.metrics.IncRetaineeSet()
	s.emit(ctx, retainee, "retainee:"+retainee.String(), audit.ActionRetaineeInfoSet, name)
	return nil
}

// RetainorInfo returns the profile for a retainor address.
func (s *Service) RetainorInfo(ctx context.Context, retainor domain.Address) (RetainorInfo, error) {
	info, err := s.store.GetRetainorInfo(ctx, retainor)
	if errors.Is(err, sentinel.ErrNotFound) {
		return RetainorInfo{}, dErrors.New(dErrors.CodeNotFound, "retainor not registered")
	}
	if err != nil {
		return RetainorInfo{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retainor info")
	}
	return info, nil
}

// RetaineeInfo returns the profile for a retainee address.
func (s *Service) RetaineeInfo(ctx context.Context, retainee domain.Address) (RetaineeInfo, error) {
	info, err := s.store.GetRetaineeInfo(ctx, retainee)
	if errors.Is(err, sentinel.ErrNotFound) {
		return RetaineeInfo{}, dErrors.New(dErrors.CodeNotFound, "retainee not registered")
	}
	if err != nil {
		return RetaineeInfo{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retainee info")
	}
	return info, nil
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
