package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/washbonus/internal/model"
)

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// InsertLedgerEntry добавляет запись в журнал баллов. Журнал только
// пополняется: записи не изменяются и не удаляются.
func (r *PostgresRepository) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO points_ledger (id, customer_id, transaction_id, rule_id, points_delta, reward_type_applied)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		e.ID, e.CustomerID, nullableUUID(e.TransactionID), nullableUUID(e.RuleID),
		e.PointsDelta, string(e.RewardTypeApplied),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries возвращает журнал баллов клиента, новые записи первыми.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, customerID uuid.UUID) ([]model.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, customer_id, transaction_id, rule_id, points_delta, reward_type_applied, created_at
		 FROM points_ledger
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	defer rows.Close()

	var res []model.LedgerEntry
	for rows.Next() {
		var (
			e             model.LedgerEntry
			txnID, ruleID uuid.NullUUID
			rewardType    string
		)
		if err := rows.Scan(&e.ID, &e.CustomerID, &txnID, &ruleID,
			&e.PointsDelta, &rewardType, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.TransactionID = uuidPtr(txnID)
		e.RuleID = uuidPtr(ruleID)
		e.RewardTypeApplied = model.RewardType(rewardType)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertPointBalance изменяет кешированный баланс клиента на delta
// и возвращает новое значение.
func (r *PostgresRepository) UpsertPointBalance(ctx context.Context, customerID uuid.UUID, delta int) (int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`INSERT INTO point_balances (customer_id, total_points, last_updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (customer_id) DO UPDATE
		 SET total_points = point_balances.total_points + EXCLUDED.total_points,
		     last_updated_at = now()
		 RETURNING total_points`,
		customerID, delta,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("upsert point balance: %w", err)
	}
	return total, nil
}

// GetPointBalance возвращает кешированный баланс клиента и признак наличия записи.
func (r *PostgresRepository) GetPointBalance(ctx context.Context, customerID uuid.UUID) (int, bool, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT total_points FROM point_balances WHERE customer_id = $1`,
		customerID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get point balance: %w", err)
	}
	return total, true, nil
}

// ReconcileBalances пересчитывает кешированные балансы клиентов бизнеса из
// журнала и синхронизирует устаревшее поле customers.points. Возвращает число
// исправленных балансов.
func (r *PostgresRepository) ReconcileBalances(ctx context.Context, businessID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO point_balances (customer_id, total_points, last_updated_at)
		 SELECT c.id, COALESCE(SUM(l.points_delta), 0), now()
		 FROM customers c
		 LEFT JOIN points_ledger l ON l.customer_id = c.id
		 WHERE c.business_id = $1
		 GROUP BY c.id
		 ON CONFLICT (customer_id) DO UPDATE
		 SET total_points = EXCLUDED.total_points, last_updated_at = now()
		 WHERE point_balances.total_points IS DISTINCT FROM EXCLUDED.total_points`,
		businessID,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile balances: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE customers c
		 SET points = b.total_points
		 FROM point_balances b
		 WHERE b.customer_id = c.id AND c.business_id = $1 AND c.points <> b.total_points`,
		businessID,
	)
	if err != nil {
		return 0, fmt.Errorf("mirror customer points: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// InsertRedeemableOffer создаёт персональное предложение. Частичный уникальный
// индекс гарантирует не больше одного непогашенного предложения на
// (клиент, бизнес, тип клиента); нарушение транслируется в ErrOfferExists.
func (r *PostgresRepository) InsertRedeemableOffer(ctx context.Context, o *model.RedeemableOffer) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO redeemable_offers
		   (id, customer_id, business_id, rule_id, customer_type, reward_type,
		    reward_value, trigger_transaction_id, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		o.ID, o.CustomerID, o.BusinessID, nullableUUID(o.RuleID),
		string(o.CustomerType), string(o.RewardType), o.RewardValue,
		nullableUUID(o.TriggerTransactionID), o.ExpiresAt,
	).Scan(&o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOfferExists
		}
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

const offerColumns = `id, customer_id, business_id, rule_id, customer_type, reward_type,
	reward_value, is_redeemed, redeemed_at, redeemed_transaction_id,
	trigger_transaction_id, created_at, expires_at`

func scanOffer(row pgx.Row) (*model.RedeemableOffer, error) {
	var (
		o                            model.RedeemableOffer
		ruleID, redeemedTxn, trigger uuid.NullUUID
		customerType, rewardType     string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.BusinessID, &ruleID,
		&customerType, &rewardType, &o.RewardValue,
		&o.IsRedeemed, &o.RedeemedAt, &redeemedTxn,
		&trigger, &o.CreatedAt, &o.ExpiresAt)
	if err != nil {
		return nil, err
	}
	o.RuleID = uuidPtr(ruleID)
	o.RedeemedTransactionID = uuidPtr(redeemedTxn)
	o.TriggerTransactionID = uuidPtr(trigger)
	o.CustomerType = model.CustomerType(customerType)
	o.RewardType = model.RewardType(rewardType)
	return &o, nil
}

// GetRedeemableOffer возвращает предложение по идентификатору.
func (r *PostgresRepository) GetRedeemableOffer(ctx context.Context, id uuid.UUID) (*model.RedeemableOffer, error) {
	o, err := scanOffer(r.db.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM redeemable_offers WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// GetUnredeemedOffer возвращает непогашенное предложение клиента данного типа.
func (r *PostgresRepository) GetUnredeemedOffer(ctx context.Context, customerID, businessID uuid.UUID, customerType model.CustomerType) (*model.RedeemableOffer, error) {
	o, err := scanOffer(r.db.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM redeemable_offers
		 WHERE customer_id = $1 AND business_id = $2 AND customer_type = $3 AND NOT is_redeemed`,
		customerID, businessID, string(customerType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("get unredeemed offer: %w", err)
	}
	return o, nil
}

// ListRedeemableOffers возвращает предложения клиента, новые первыми.
func (r *PostgresRepository) ListRedeemableOffers(ctx context.Context, customerID uuid.UUID, includeRedeemed bool) ([]model.RedeemableOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM redeemable_offers
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`
	if !includeRedeemed {
		query = `SELECT ` + offerColumns + ` FROM redeemable_offers
		 WHERE customer_id = $1 AND NOT is_redeemed
		 ORDER BY created_at DESC`
	}

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer rows.Close()

	var res []model.RedeemableOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkOfferRedeemed помечает предложение погашенным указанной транзакцией.
// Повторное погашение не проходит условие NOT is_redeemed и возвращает
// ErrOfferAlreadyRedeemed.
func (r *PostgresRepository) MarkOfferRedeemed(ctx context.Context, offerID, transactionID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE redeemable_offers
		 SET is_redeemed = true, redeemed_at = $2, redeemed_transaction_id = $3
		 WHERE id = $1 AND NOT is_redeemed`,
		offerID, at, transactionID,
	)
	if err != nil {
		return fmt.Errorf("mark offer redeemed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferAlreadyRedeemed
	}
	return nil
}
