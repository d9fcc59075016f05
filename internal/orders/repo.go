package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, buyer_id, farmer_id, product_id, quantity, unit_price::text, total_amount::text,
	status, payment_method, payment_status, delivery_address, delivery_city, delivery_state,
	delivery_pincode, delivery_phone, notes, delivered_at, version, created_at, updated_at`

func scanOrder(row scanner) (Order, error) {
	var (
		o                             Order
		unitPrice, total              string
		status, method, paymentStatus string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.FarmerID, &o.ProductID, &o.Quantity, &unitPrice, &total,
		&status, &method, &paymentStatus, &o.DeliveryAddress.Address, &o.DeliveryAddress.City,
		&o.DeliveryAddress.State, &o.DeliveryAddress.Pincode, &o.DeliveryAddress.Phone, &o.Notes,
		&o.DeliveredAt, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if o.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return Order{}, fmt.Errorf("decode unit_price: %w", err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("decode total_amount: %w", err)
	}
	o.Status, o.PaymentMethod, o.PaymentStatus = Status(status), PaymentMethod(method), PaymentStatus(paymentStatus)
	return o, nil
}

func (r *Repo) CreateOrder(ctx context.Context, o Order) (Order, error) {
	d := o.DeliveryAddress
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, buyer_id, farmer_id, product_id, quantity, unit_price, total_amount,
			status, payment_method, payment_status, delivery_address, delivery_city, delivery_state,
			delivery_pincode, delivery_phone, notes, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8,$9,$10,$11,$12,$13,$14,$15,$16,1,$17,$17)
		RETURNING `+orderColumns,
		o.ID, o.BuyerID, o.FarmerID, o.ProductID, o.Quantity, o.UnitPrice.String(), o.TotalAmount.String(),
		string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		d.Address, d.City, d.State, d.Pincode, d.Phone, o.Notes, o.CreatedAt)
	return scanOrder(row)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, err
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpdateOrder: conditional write, hanya jalan kalau status masih sama dengan expect.
func (r *Repo) UpdateOrder(ctx context.Context, id string, expect Status, patch OrderPatch) (Order, error) {
	return patchOrder(ctx, r.DB, id, expect, patch)
}

// ReleaseOrder: satu tx. Lock product (FOR UPDATE) -> restock -> conditional
// update order. Status mismatch = rollback, stok tidak berubah.
func (r *Repo) ReleaseOrder(ctx context.Context, id string, expect Status, patch OrderPatch) (Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var productID string
	var qty int
	err = tx.QueryRow(ctx, `SELECT product_id, quantity FROM orders WHERE id=$1`, id).Scan(&productID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Order{}, false, mapPgErr(err)
	}

	// urutan lock selalu product dulu baru order, sama untuk semua caller
	cur, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, productID))
	restocked := err == nil
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return Order{}, false, mapPgErr(err)
	default:
		cur.Restock(qty)
		if _, err := tx.Exec(ctx, `
			UPDATE products SET available_quantity=$2, status=$3, version=version+1, updated_at=$4
			WHERE id=$1`,
			productID, cur.AvailableQuantity, string(cur.Status), time.Now().UTC()); err != nil {
			return Order{}, false, mapPgErr(err)
		}
	}

	o, err := patchOrder(ctx, tx, id, expect, patch)
	if err != nil {
		return Order{}, false, mapPgErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, mapPgErr(err)
	}
	return o, restocked, nil
}

func patchOrder(ctx context.Context, q rowQuerier, id string, expect Status, patch OrderPatch) (Order, error) {
	var status, payment *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	if patch.PaymentStatus != nil {
		s := string(*patch.PaymentStatus)
		payment = &s
	}
	row := q.QueryRow(ctx, `
		UPDATE orders SET
			status = COALESCE($3, status),
			payment_status = COALESCE($4, payment_status),
			delivered_at = COALESCE($5, delivered_at),
			version = version + 1,
			updated_at = $6
		WHERE id=$1 AND status=$2
		RETURNING `+orderColumns,
		id, string(expect), status, payment, patch.DeliveredAt, patch.UpdatedAt)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return Order{}, err
		}
		if !exists {
			return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return Order{}, fmt.Errorf("order %s no longer %s: %w", id, expect, ErrStatusChanged)
	}
	return o, err
}

func orderWhere(f OrderFilter) (string, []any) {
	var conds []string
	var args []any
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		conds = append(conds, fmt.Sprintf("buyer_id=$%d", len(args)))
	}
	if f.FarmerID != "" {
		args = append(args, f.FarmerID)
		conds = append(conds, fmt.Sprintf("farmer_id=$%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			ss = append(ss, string(s))
		}
		args = append(args, ss)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repo) QueryOrders(ctx context.Context, f OrderFilter, sort OrderSort, limit int) ([]Order, error) {
	where, args := orderWhere(f)
	order := " ORDER BY created_at DESC, id"
	if sort == SortOldest {
		order = " ORDER BY created_at ASC, id"
	}
	q := `SELECT ` + orderColumns + ` FROM orders` + where + order
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) CountOrders(ctx context.Context, f OrderFilter) (int, error) {
	where, args := orderWhere(f)
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&n)
	return n, err
}

func (r *Repo) SumOrderTotals(ctx context.Context, f OrderFilter) (decimal.Decimal, error) {
	where, args := orderWhere(f)
	var s string
	if err := r.DB.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0)::text FROM orders`+where, args...).Scan(&s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
