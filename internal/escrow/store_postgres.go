package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/platform/tx"
)

// PostgresStore persists escrow state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SeedAdmin(ctx context.Context, admin domain.Address) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO escrow_admin (singleton, admin) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO NOTHING`,
		admin.String(),
	)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetAdmin(ctx context.Context) (domain.Address, error) {
	var admin domain.Address
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `SELECT admin FROM escrow_admin`).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}

func (s *PostgresStore) SetAdmin(ctx context.Context, admin domain.Address) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO escrow_admin (singleton, admin) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET admin = EXCLUDED.admin`,
		admin.String(),
	)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendReceipt(ctx context.Context, receipt ReceiptConfig) (uint32, error) {
	var index uint32
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		// Lock the counter row so concurrent deposits cannot share an index.
		err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
			INSERT INTO escrow_receipt_counts (depositor, count) VALUES ($1, 1)
			ON CONFLICT (depositor) DO UPDATE SET count = escrow_receipt_counts.count + 1
			RETURNING count - 1`,
			receipt.Depositor.String(),
		).Scan(&index)
		if err != nil {
			return fmt.Errorf("advance receipt count: %w", err)
		}
		_, err = tx.Q(ctx, s.db).ExecContext(ctx, `
			INSERT INTO escrow_receipts (depositor, idx, amount, token, bound_kind, bound_ts)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			receipt.Depositor.String(), index, receipt.Amount.String(),
			receipt.Token.String(), string(receipt.TimeBound.Kind), int64(receipt.TimeBound.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

func (s *PostgresStore) GetReceipt(ctx context.Context, depositor domain.Address, index uint32) (ReceiptConfig, error) {
	var receipt ReceiptConfig
	var amount, kind string
	var boundTS int64
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT amount, token, bound_kind, bound_ts
		FROM escrow_receipts WHERE depositor = $1 AND idx = $2`,
		depositor.String(), index,
	).Scan(&amount, &receipt.Token, &kind, &boundTS)
	if errors.Is(err, sql.ErrNoRows) {
		return ReceiptConfig{}, sentinel.ErrNotFound
	}
	if err != nil {
		return ReceiptConfig{}, fmt.Errorf("get receipt: %w", err)
	}
	receipt.Depositor = depositor
	receipt.TimeBound = TimeBound{Kind: TimeBoundKind(kind), Timestamp: domain.Timestamp(boundTS)}
	receipt.Amount, err = domain.ParseAmount(amount)
	if err != nil {
		return ReceiptConfig{}, fmt.Errorf("get receipt: %w", err)
	}
	return receipt, nil
}

func (s *PostgresStore) ReceiptCount(ctx context.Context, depositor domain.Address) (uint32, error) {
	var count uint32
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COALESCE((SELECT count FROM escrow_receipt_counts WHERE depositor = $1), 0)`,
		depositor.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("receipt count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListReceipts(ctx context.Context, depositor domain.Address) (map[uint32]ReceiptConfig, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT idx, amount, token, bound_kind, bound_ts
		FROM escrow_receipts WHERE depositor = $1 ORDER BY idx`,
		depositor.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := make(map[uint32]ReceiptConfig)
	for rows.Next() {
		var index uint32
		var amount, kind string
		var boundTS int64
		receipt := ReceiptConfig{Depositor: depositor}
		if err := rows.Scan(&index, &amount, &receipt.Token, &kind, &boundTS); err != nil {
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		receipt.TimeBound = TimeBound{Kind: TimeBoundKind(kind), Timestamp: domain.Timestamp(boundTS)}
		receipt.Amount, err = domain.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		out[index] = receipt
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetReceiptAmount(ctx context.Context, depositor domain.Address, index uint32, remaining domain.Amount) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		UPDATE escrow_receipts SET amount = $3 WHERE depositor = $1 AND idx = $2`,
		depositor.String(), index, remaining.String(),
	)
	if err != nil {
		return fmt.Errorf("set receipt amount: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set receipt amount: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteReceipt(ctx context.Context, depositor domain.Address, index uint32) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		DELETE FROM escrow_receipts WHERE depositor = $1 AND idx = $2`,
		depositor.String(), index,
	)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}
