package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres implementation of Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const productColumns = `id, owner_id, name, category, description, unit, price::text,
	available_quantity, status, is_organic, harvest_date, views, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (Product, error) {
	var (
		p                      Product
		category, unit, status string
		price                  string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &category, &p.Description, &unit, &price,
		&p.AvailableQuantity, &status, &p.IsOrganic, &p.HarvestDate, &p.Views, &p.Version,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("decode price: %w", err)
	}
	p.Category, p.Unit, p.Status = Category(category), Unit(unit), ProductStatus(status)
	return p, nil
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, owner_id, name, category, description, unit, price,
			available_quantity, status, is_organic, harvest_date, views, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,0,1,$12,$12)
		RETURNING `+productColumns,
		p.ID, p.OwnerID, p.Name, string(p.Category), p.Description, string(p.Unit), p.Price.String(),
		p.AvailableQuantity, string(p.Status), p.IsOrganic, p.HarvestDate, p.CreatedAt)
	return scanProduct(row)
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, err
}

// UpdateProductAtomic: lock baris product (FOR UPDATE) -> mutate -> tulis balik.
// Semua reserve/release untuk product yang sama jadi serial di level row lock.
func (r *Repo) UpdateProductAtomic(ctx context.Context, id string, mutate ProductMutation) (Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, mapPgErr(err)
	}

	next := cur
	if err := mutate(&next); err != nil {
		return Product{}, err
	}
	if next.AvailableQuantity < 0 {
		return Product{}, &StockError{ProductID: id, Requested: cur.AvailableQuantity - next.AvailableQuantity, Available: cur.AvailableQuantity}
	}
	next.ID, next.OwnerID, next.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()

	row := tx.QueryRow(ctx, `
		UPDATE products SET name=$3, category=$4, description=$5, unit=$6, price=$7::numeric,
			available_quantity=$8, status=$9, is_organic=$10, harvest_date=$11, views=$12,
			version=version+1, updated_at=$13
		WHERE id=$1 AND version=$2
		RETURNING `+productColumns,
		id, cur.Version, next.Name, string(next.Category), next.Description, string(next.Unit),
		next.Price.String(), next.AvailableQuantity, string(next.Status), next.IsOrganic,
		next.HarvestDate, next.Views, next.UpdatedAt)
	out, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrConflict
	}
	if err != nil {
		return Product{}, mapPgErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, mapPgErr(err)
	}
	return out, nil
}

func (r *Repo) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

func productWhere(f ProductFilter) (string, []any) {
	var conds []string
	var args []any
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id=$%d", len(args)))
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

func (r *Repo) QueryProducts(ctx context.Context, f ProductFilter, limit int) ([]Product, error) {
	where, args := productWhere(f)
	q := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CountProducts(ctx context.Context, f ProductFilter) (int, error) {
	where, args := productWhere(f)
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n)
	return n, err
}

// serialization_failure, deadlock_detected, lock_not_available
var retryableCodes = map[string]bool{"40001": true, "40P01": true, "55P03": true}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableCodes[pgErr.Code] {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}
