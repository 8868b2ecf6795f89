package arbitration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/platform/tx"
)

// PostgresStore persists arbitration state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SetConfig(ctx context.Context, arbiter domain.Address, config ArbitrationConfig) error {
	cosigners := make([]string, len(config.Cosigners))
	for i, c := range config.Cosigners {
		cosigners[i] = c.String()
	}
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO arbitration_configs (arbiter, approvals, cosigners)
		VALUES ($1, $2, $3)
		ON CONFLICT (arbiter) DO UPDATE SET approvals = EXCLUDED.approvals, cosigners = EXCLUDED.cosigners`,
		arbiter.String(), config.Approvals, pq.Array(cosigners),
	)
	if err != nil {
		return fmt.Errorf("set arbitration config: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConfig(ctx context.Context, arbiter domain.Address) (ArbitrationConfig, error) {
	var config ArbitrationConfig
	var cosigners []string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT approvals, cosigners FROM arbitration_configs WHERE arbiter = $1`,
		arbiter.String(),
	).Scan(&config.Approvals, pq.Array(&cosigners))
	if errors.Is(err, sql.ErrNoRows) {
		return ArbitrationConfig{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ArbitrationConfig{}, fmt.Errorf("get arbitration config: %w", err)
	}
	config.Cosigners = make([]domain.Address, len(cosigners))
	for i, c := range cosigners {
		config.Cosigners[i] = domain.Address(c)
	}
	return config, nil
}

func (s *PostgresStore) AddSignature(ctx context.Context, key EventKey, cosigner domain.Address) (ArbitrationEventConfig, error) {
	event := ArbitrationEventConfig{Arbitration: key.Arbiter}
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		var signatures []string
		err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
			SELECT signatures FROM arbitration_events
			WHERE arbiter = $1 AND depositor = $2 AND idx = $3
			FOR UPDATE`,
			key.Arbiter.String(), key.Depositor.String(), key.Index,
		).Scan(pq.Array(&signatures))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("load arbitration event: %w", err)
		}

		if !slices.Contains(signatures, cosigner.String()) {
			signatures = append(signatures, cosigner.String())
		}
		_, err = tx.Q(ctx, s.db).ExecContext(ctx, `
			INSERT INTO arbitration_events (arbiter, depositor, idx, signatures)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (arbiter, depositor, idx) DO UPDATE SET signatures = EXCLUDED.signatures`,
			key.Arbiter.String(), key.Depositor.String(), key.Index, pq.Array(signatures),
		)
		if err != nil {
			return fmt.Errorf("store arbitration event: %w", err)
		}

		event.Signatures = make([]domain.Address, len(signatures))
		for i, sig := range signatures {
			event.Signatures[i] = domain.Address(sig)
		}
		return nil
	})
	if err != nil {
		return ArbitrationEventConfig{}, err
	}
	return event, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, key EventKey) (ArbitrationEventConfig, error) {
	var signatures []string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT signatures FROM arbitration_events
		WHERE arbiter = $1 AND depositor = $2 AND idx = $3`,
		key.Arbiter.String(), key.Depositor.String(), key.Index,
	).Scan(pq.Array(&signatures))
	if errors.Is(err, sql.ErrNoRows) {
		return ArbitrationEventConfig{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ArbitrationEventConfig{}, fmt.Errorf("get arbitration event: %w", err)
	}
	event := ArbitrationEventConfig{Arbitration: key.Arbiter}
	event.Signatures = make([]domain.Address, len(signatures))
	for i, sig := range signatures {
		event.Signatures[i] = domain.Address(sig)
	}
	return event, nil
}
