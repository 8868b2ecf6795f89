package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

// PostgresStore persists directory entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SetRetainorInfo(ctx context.Context, retainor domain.Address, info RetainorInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retainor_info (address, name, retainees)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name, retainees = EXCLUDED.retainees`,
		retainor.String(), info.Name, pq.Array(addressStrings(info.Retainees)),
	)
	if err != nil {
		return fmt.Errorf("set retainor info: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRetainorInfo(ctx context.Context, retainor domain.Address) (RetainorInfo, error) {
	var info RetainorInfo
	var retainees []string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, retainees FROM retainor_info WHERE address = $1`,
		retainor.String(),
	).Scan(&info.Name, pq.Array(&retainees))
	if errors.Is(err, sql.ErrNoRows) {
		return RetainorInfo{}, sentinel.ErrNotFound
	}
	if err != nil {
		return RetainorInfo{}, fmt.Errorf("get retainor info: %w", err)
	}
	info.Retainees = toAddresses(retainees)
	return info, nil
}

func (s *PostgresStore) SetRetaineeInfo(ctx context.Context, retainee domain.Address, info RetaineeInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retainee_info (address, name, retainors)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name, retainors = EXCLUDED.retainors`,
		retainee.String(), info.Name, pq.Array(addressStrings(info.Retainors)),
	)
	if err != nil {
		return fmt.Errorf("set retainee info: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRetaineeInfo(ctx context.Context, retainee domain.Address) (RetaineeInfo, error) {
	var info RetaineeInfo
	var retainors []string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, retainors FROM retainee_info WHERE address = $1`,
		retainee.String(),
	).Scan(&info.Name, pq.Array(&retainors))
	if errors.Is(err, sql.ErrNoRows) {
		return RetaineeInfo{}, sentinel.ErrNotFound
	}
	if err != nil {
		return RetaineeInfo{}, fmt.Errorf("get retainee info: %w", err)
	}
	info.Retainors = toAddresses(retainors)
	return info, nil
}

func addressStrings(addrs []domain.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func toAddresses(values []string) []domain.Address {
	out := make([]domain.Address, len(values))
	for i, v := range values {
		out[i] = domain.Address(v)
	}
	return out
}
