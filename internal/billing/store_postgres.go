package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
	"trustline/pkg/platform/tx"
)

// PostgresStore persists ledger state in PostgreSQL. Amounts are NUMERIC
// columns read and written as text. Multi-statement operations run inside a
// transaction with the pending row locked, matching the memory store's
// call-level atomicity.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PutPendingBill(ctx context.Context, pair Pair, bill Bill) error {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pending_bills (retainor, retainee, amount, token, notes, bill_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (retainor, retainee) DO NOTHING`,
		pair.Retainor.String(), pair.Retainee.String(),
		bill.Amount.String(), bill.Token.String(), bill.Notes, bill.Date,
	)
	if err != nil {
		return fmt.Errorf("put pending bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put pending bill: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetPendingBill(ctx context.Context, pair Pair) (Bill, error) {
	return s.scanPendingBill(ctx, pair, false)
}

func (s *PostgresStore) ClearPendingBill(ctx context.Context, pair Pair) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		DELETE FROM pending_bills WHERE retainor = $1 AND retainee = $2`,
		pair.Retainor.String(), pair.Retainee.String(),
	)
	if err != nil {
		return fmt.Errorf("clear pending bill: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResolvePending(ctx context.Context, pair Pair, status ApprovalStatus, notes, date string) (Receipt, uint32, error) {
	var receipt Receipt
	var index uint32
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		bill, err := s.scanPendingBill(ctx, pair, true)
		if err != nil {
			return err
		}
		receipt = Receipt{Bill: bill, Status: status, Notes: notes, Date: date}

		idx, err := s.HistoryIndex(ctx, pair)
		if err != nil {
			return err
		}
		index = idx

		_, err = tx.Q(ctx, s.db).ExecContext(ctx, `
			INSERT INTO bill_history
				(retainor, retainee, idx, amount, token, bill_notes, bill_date, status, notes, resolved_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			pair.Retainor.String(), pair.Retainee.String(), index,
			bill.Amount.String(), bill.Token.String(), bill.Notes, bill.Date,
			string(status), notes, date,
		)
		if err != nil {
			return fmt.Errorf("append receipt: %w", err)
		}
		return s.ClearPendingBill(ctx, pair)
	})
	if err != nil {
		return Receipt{}, 0, err
	}
	return receipt, index, nil
}

func (s *PostgresStore) GetReceipt(ctx context.Context, pair Pair, index uint32) (Receipt, error) {
	var r Receipt
	var amount, status string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT amount, token, bill_notes, bill_date, status, notes, resolved_date
		FROM bill_history WHERE retainor = $1 AND retainee = $2 AND idx = $3`,
		pair.Retainor.String(), pair.Retainee.String(), index,
	).Scan(&amount, &r.Bill.Token, &r.Bill.Notes, &r.Bill.Date, &status, &r.Notes, &r.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("get receipt: %w", err)
	}
	r.Bill.Amount, err = domain.ParseAmount(amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("get receipt: %w", err)
	}
	r.Status = ApprovalStatus(status)
	return r, nil
}

func (s *PostgresStore) HistoryIndex(ctx context.Context, pair Pair) (uint32, error) {
	var index uint32
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bill_history WHERE retainor = $1 AND retainee = $2`,
		pair.Retainor.String(), pair.Retainee.String(),
	).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("history index: %w", err)
	}
	return index, nil
}

func (s *PostgresStore) ReceiptRange(ctx context.Context, pair Pair, start, end uint32) ([]Receipt, error) {
	if start > end {
		return nil, nil
	}
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT amount, token, bill_notes, bill_date, status, notes, resolved_date
		FROM bill_history
		WHERE retainor = $1 AND retainee = $2 AND idx BETWEEN $3 AND $4
		ORDER BY idx`,
		pair.Retainor.String(), pair.Retainee.String(), start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("receipt range: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var r Receipt
		var amount, status string
		if err := rows.Scan(&amount, &r.Bill.Token, &r.Bill.Notes, &r.Bill.Date, &status, &r.Notes, &r.Date); err != nil {
			return nil, fmt.Errorf("receipt range: %w", err)
		}
		r.Bill.Amount, err = domain.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("receipt range: %w", err)
		}
		r.Status = ApprovalStatus(status)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func (s *PostgresStore) AddBalance(ctx context.Context, pair Pair, token domain.Address, delta domain.Amount) (RetainerBalance, error) {
	var amount string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO retainer_balances (retainor, retainee, token, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (retainor, retainee, token)
			DO UPDATE SET amount = retainer_balances.amount + EXCLUDED.amount
		RETURNING amount`,
		pair.Retainor.String(), pair.Retainee.String(), token.String(), delta.String(),
	).Scan(&amount)
	if err != nil {
		return RetainerBalance{}, fmt.Errorf("add balance: %w", err)
	}
	parsed, err := domain.ParseAmount(amount)
	if err != nil {
		return RetainerBalance{}, fmt.Errorf("add balance: %w", err)
	}
	return RetainerBalance{
		Retainor: pair.Retainor,
		Retainee: pair.Retainee,
		Token:    token,
		Amount:   parsed,
	}, nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, pair Pair, token domain.Address) (RetainerBalance, error) {
	var amount string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, `
		SELECT amount FROM retainer_balances
		WHERE retainor = $1 AND retainee = $2 AND token = $3`,
		pair.Retainor.String(), pair.Retainee.String(), token.String(),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return RetainerBalance{}, sentinel.ErrNotFound
	}
	if err != nil {
		return RetainerBalance{}, fmt.Errorf("get balance: %w", err)
	}
	parsed, err := domain.ParseAmount(amount)
	if err != nil {
		return RetainerBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return RetainerBalance{
		Retainor: pair.Retainor,
		Retainee: pair.Retainee,
		Token:    token,
		Amount:   parsed,
	}, nil
}

func (s *PostgresStore) ListBalances(ctx context.Context, pair Pair) ([]RetainerBalance, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		SELECT token, amount FROM retainer_balances
		WHERE retainor = $1 AND retainee = $2
		ORDER BY token`,
		pair.Retainor.String(), pair.Retainee.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []RetainerBalance
	for rows.Next() {
		var token, amount string
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, fmt.Errorf("list balances: %w", err)
		}
		parsed, err := domain.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("list balances: %w", err)
		}
		balances = append(balances, RetainerBalance{
			Retainor: pair.Retainor,
			Retainee: pair.Retainee,
			Token:    domain.Address(token),
			Amount:   parsed,
		})
	}
	return balances, rows.Err()
}

// scanPendingBill reads the pending slot, optionally locking the row for the
// enclosing transaction.
func (s *PostgresStore) scanPendingBill(ctx context.Context, pair Pair, forUpdate bool) (Bill, error) {
	query := `
		SELECT amount, token, notes, bill_date
		FROM pending_bills WHERE retainor = $1 AND retainee = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var bill Bill
	var amount string
	err := tx.Q(ctx, s.db).QueryRowContext(ctx, query,
		pair.Retainor.String(), pair.Retainee.String(),
	).Scan(&amount, &bill.Token, &bill.Notes, &bill.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return Bill{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Bill{}, fmt.Errorf("get pending bill: %w", err)
	}
	bill.Amount, err = domain.ParseAmount(amount)
	if err != nil {
		return Bill{}, fmt.Errorf("get pending bill: %w", err)
	}
	return bill, nil
}
