// Package stock owns every mutation of inventory counters. Correctness of
// check-then-update under concurrent callers relies on Postgres row locks
// (SELECT ... FOR UPDATE) inside one transaction per operation; no other
// component writes on_hand/reserved/available.
package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

type Ledger struct {
	DB  *pgxpool.Pool
	TTL time.Duration // reservation hold window, expires_at = now + TTL
	Log zerolog.Logger
}

func NewLedger(db *pgxpool.Pool, ttl time.Duration, log zerolog.Logger) *Ledger {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Ledger{DB: db, TTL: ttl, Log: log.With().Str("component", "stock-ledger").Logger()}
}

// Reserve holds qty units of a variant at a location. The inventory row is
// locked for the duration of the transaction, so concurrent reservations
// against the same row serialize and can never jointly oversell.
func (l *Ledger) Reserve(ctx context.Context, variantID, locationID string, qty int, orderID *string) (*commerce.StockReservation, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lvl, err := lockLevel(ctx, tx, variantID, locationID)
	if err != nil {
		return nil, err
	}
	if err := lvl.ApplyReserve(qty); err != nil {
		return nil, err
	}
	if err := updateLevel(ctx, tx, lvl); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := &commerce.StockReservation{
		ID:              uuid.NewString(),
		VariantID:       variantID,
		StockLocationID: locationID,
		Quantity:        qty,
		OrderID:         orderID,
		ExpiresAt:       now.Add(l.TTL),
		CreatedAt:       now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_reservations(id, variant_id, stock_location_id, qty, order_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		res.ID, res.VariantID, res.StockLocationID, res.Quantity, res.OrderID, res.ExpiresAt, res.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if lvl.LowStock() {
		l.Log.Warn().Str("variant_id", variantID).Str("location_id", locationID).
			Int("available", lvl.Available).Msg("low stock after reservation")
	}
	return res, nil
}

// Release returns a held reservation's quantity to available stock.
// A second call on the same id fails with ErrAlreadyReleased and never
// double-credits the counters.
func (l *Ledger) Release(ctx context.Context, reservationID string) (*commerce.StockReservation, error) {
	return l.settle(ctx, reservationID, false)
}

// Confirm converts a held reservation into a permanent deduction:
// on_hand -= qty, reserved -= qty. The reservation is consumed and
// stamped released, so it is terminal afterwards.
func (l *Ledger) Confirm(ctx context.Context, reservationID string) (*commerce.StockReservation, error) {
	return l.settle(ctx, reservationID, true)
}

func (l *Ledger) settle(ctx context.Context, reservationID string, confirm bool) (*commerce.StockReservation, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &commerce.StockReservation{ID: reservationID}
	err = tx.QueryRow(ctx, `
		SELECT variant_id, stock_location_id, qty, order_id, expires_at, released_at, created_at
		FROM stock_reservations WHERE id=$1 FOR UPDATE`, reservationID).
		Scan(&res.VariantID, &res.StockLocationID, &res.Quantity, &res.OrderID,
			&res.ExpiresAt, &res.ReleasedAt, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !res.Held() {
		return nil, commerce.ErrAlreadyReleased
	}

	lvl, err := lockLevel(ctx, tx, res.VariantID, res.StockLocationID)
	if err != nil {
		return nil, err
	}
	if confirm {
		lvl.ApplyConfirm(res.Quantity)
	} else {
		lvl.ApplyRelease(res.Quantity)
	}
	if err := updateLevel(ctx, tx, lvl); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE stock_reservations SET released_at=$2 WHERE id=$1`, reservationID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	res.ReleasedAt = &now
	return res, nil
}

// ReleaseExpired reclaims every reservation whose hold window has lapsed.
// Each row is released in its own transaction; one failure does not abort
// the rest of the scan. Returns the number actually released.
func (l *Ledger) ReleaseExpired(ctx context.Context) (int, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id FROM stock_reservations
		WHERE expires_at < now() AND released_at IS NULL`)
	if err != nil {
		return 0, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		if _, err := l.Release(ctx, id); err != nil {
			// a concurrent manual release/confirm already settled it
			if errors.Is(err, commerce.ErrAlreadyReleased) || errors.Is(err, commerce.ErrNotFound) {
				continue
			}
			l.Log.Error().Err(err).Str("reservation_id", id).Msg("release expired failed")
			continue
		}
		released++
	}
	return released, nil
}

// ReleaseByOrder releases every held reservation of one order, e.g. after
// the order was cancelled. Returns the number released.
func (l *Ledger) ReleaseByOrder(ctx context.Context, orderID string) (int, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id FROM stock_reservations
		WHERE order_id=$1 AND released_at IS NULL`, orderID)
	if err != nil {
		return 0, err
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, id := range ids {
		if _, err := l.Release(ctx, id); err != nil {
			if errors.Is(err, commerce.ErrAlreadyReleased) || errors.Is(err, commerce.ErrNotFound) {
				continue
			}
			l.Log.Error().Err(err).Str("reservation_id", id).Msg("release by order failed")
			continue
		}
		released++
	}
	return released, nil
}

func lockLevel(ctx context.Context, tx pgx.Tx, variantID, locationID string) (*commerce.InventoryLevel, error) {
	lvl := &commerce.InventoryLevel{VariantID: variantID, StockLocationID: locationID}
	err := tx.QueryRow(ctx, `
		SELECT on_hand, reserved, available, low_stock_threshold
		FROM inventory_levels
		WHERE variant_id=$1 AND stock_location_id=$2 FOR UPDATE`,
		variantID, locationID).
		Scan(&lvl.OnHand, &lvl.Reserved, &lvl.Available, &lvl.LowStockThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lvl, nil
}

func updateLevel(ctx context.Context, tx pgx.Tx, lvl *commerce.InventoryLevel) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory_levels
		SET on_hand=$3, reserved=$4, available=$5, updated_at=now()
		WHERE variant_id=$1 AND stock_location_id=$2`,
		lvl.VariantID, lvl.StockLocationID, lvl.OnHand, lvl.Reserved, lvl.Available)
	return err
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
