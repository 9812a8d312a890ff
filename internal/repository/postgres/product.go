package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"

	sq "github.com/Masterminds/squirrel"
)

const productTable = "products"

var productColumns = []string{
	"id", "owner_id", "name", "description",
	"price_hour_cents", "price_day_cents", "price_week_cents", "price_month_cents", "price_year_cents",
	"total_quantity", "quantity_available", "availability", "min_quantity", "max_quantity",
	"created_on", "updated_on", "deleted_on",
}

var productSelect = "SELECT " + strings.Join(productColumns, ", ") + " FROM " + productTable

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description,
		&p.Prices.HourCents, &p.Prices.DayCents, &p.Prices.WeekCents, &p.Prices.MonthCents, &p.Prices.YearCents,
		&p.TotalQuantity, &p.QuantityAvailable, &p.Availability, &p.MinQuantity, &p.MaxQuantity,
		&p.CreatedOn, &p.UpdatedOn, &p.DeletedOn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	logger.EnterMethod("productRepository.Create", "ownerID", p.OwnerID)

	now := time.Now().UTC()
	p.CreatedOn, p.UpdatedOn = now, now
	p.SyncAvailability()

	query := `INSERT INTO products (owner_id, name, description, price_hour_cents, price_day_cents, price_week_cents, price_month_cents, price_year_cents,
	          total_quantity, quantity_available, availability, min_quantity, max_quantity, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.OwnerID, p.Name, p.Description, p.Prices.HourCents, p.Prices.DayCents, p.Prices.WeekCents, p.Prices.MonthCents, p.Prices.YearCents,
		p.TotalQuantity, p.QuantityAvailable, p.Availability, p.MinQuantity, p.MaxQuantity, now, now,
	).Scan(&p.ID)
	if err != nil {
		logger.ExitMethodWithError("productRepository.Create", err)
		return classify("create product", err)
	}

	logger.ExitMethod("productRepository.Create", "productID", p.ID)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id int32) (*domain.Product, error) {
	p, err := scanProduct(conn(ctx, r.db).QueryRowContext(ctx, productSelect+` WHERE id = $1 AND deleted_on IS NULL`, id))
	if err != nil {
		return nil, classify("get product", err)
	}
	return p, nil
}

func (r *productRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Product, error) {
	p, err := scanProduct(conn(ctx, r.db).QueryRowContext(ctx, productSelect+` WHERE id = $1 AND deleted_on IS NULL FOR UPDATE`, id))
	if err != nil {
		return nil, classify("lock product", err)
	}
	return p, nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedOn = time.Now().UTC()
	query := `UPDATE products SET name=$1, description=$2, price_hour_cents=$3, price_day_cents=$4, price_week_cents=$5,
	          price_month_cents=$6, price_year_cents=$7, updated_on=$8 WHERE id=$9 AND deleted_on IS NULL`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, p.Name, p.Description,
		p.Prices.HourCents, p.Prices.DayCents, p.Prices.WeekCents, p.Prices.MonthCents, p.Prices.YearCents, p.UpdatedOn, p.ID)
	if err != nil {
		return classify("update product", err)
	}
	return requireRow("update product", res)
}

func (r *productRepository) Delete(ctx context.Context, id int32) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE products SET deleted_on = $1 WHERE id = $2 AND deleted_on IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return classify("delete product", err)
	}
	return requireRow("delete product", res)
}

func (r *productRepository) ListByOwner(ctx context.Context, ownerID int32, page, pageSize int32) ([]domain.Product, int32, error) {
	where := sq.Eq{"owner_id": ownerID, "deleted_on": nil}

	countQuery, countArgs, err := qb.Select("count(*)").From(productTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var count int32
	if err := conn(ctx, r.db).QueryRowContext(ctx, countQuery, countArgs...).Scan(&count); err != nil {
		return nil, 0, classify("count products", err)
	}

	query, args, err := qb.Select(productColumns...).From(productTable).Where(where).
		OrderBy("id").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	logger.DatabaseCall("productRepository.ListByOwner", query, "ownerID", ownerID)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list products", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, classify("scan product", err)
		}
		products = append(products, *p)
	}
	return products, count, classify("list products", rows.Err())
}

// ConsumeStock is a single conditional update, so concurrent checkouts cannot oversell.
func (r *productRepository) ConsumeStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error) {
	query := `UPDATE products
	          SET quantity_available = quantity_available - $1,
	              availability = (quantity_available - $1) > 0,
	              updated_on = $2
	          WHERE id = $3 AND deleted_on IS NULL AND quantity_available >= $1
	          RETURNING quantity_available, availability`
	logger.DatabaseCall("productRepository.ConsumeStock", query, "productID", id, "qty", qty)

	level := domain.StockLevel{ProductID: id}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, qty, time.Now().UTC(), id).Scan(&level.QuantityAvailable, &level.Availability)
	if errors.Is(err, sql.ErrNoRows) {
		return level, r.stockShortfall(ctx, id, qty)
	}
	if err != nil {
		return level, classify("consume stock", err)
	}
	return level, nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error) {
	query := `UPDATE products
	          SET quantity_available = quantity_available + $1,
	              availability = (quantity_available + $1) > 0,
	              updated_on = $2
	          WHERE id = $3
	          RETURNING quantity_available, availability`
	logger.DatabaseCall("productRepository.RestoreStock", query, "productID", id, "qty", qty)

	level := domain.StockLevel{ProductID: id}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, qty, time.Now().UTC(), id).Scan(&level.QuantityAvailable, &level.Availability)
	if err != nil {
		return level, classify("restore stock", err)
	}
	return level, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id int32, delta int32) (domain.StockLevel, error) {
	query := `UPDATE products
	          SET total_quantity = total_quantity + $1,
	              quantity_available = quantity_available + $1,
	              availability = (quantity_available + $1) > 0,
	              updated_on = $2
	          WHERE id = $3 AND deleted_on IS NULL AND quantity_available + $1 >= 0 AND total_quantity + $1 >= 0
	          RETURNING quantity_available, availability`

	level := domain.StockLevel{ProductID: id}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, delta, time.Now().UTC(), id).Scan(&level.QuantityAvailable, &level.Availability)
	if errors.Is(err, sql.ErrNoRows) {
		return level, r.stockShortfall(ctx, id, -delta)
	}
	if err != nil {
		return level, classify("adjust stock", err)
	}
	return level, nil
}

// stockShortfall explains why a conditional stock update matched no row.
func (r *productRepository) stockShortfall(ctx context.Context, id int32, requested int32) error {
	var available int32
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT quantity_available FROM products WHERE id = $1 AND deleted_on IS NULL`, id).Scan(&available)
	if err != nil {
		return classify("read stock", err)
	}
	return &domain.StockError{ProductID: id, Requested: requested, Available: available}
}

func (r *productRepository) SetLimits(ctx context.Context, id int32, minQty, maxQty int32) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE products SET min_quantity = $1, max_quantity = $2, updated_on = $3 WHERE id = $4 AND deleted_on IS NULL`,
		minQty, maxQty, time.Now().UTC(), id)
	if err != nil {
		return classify("set limits", err)
	}
	return requireRow("set limits", res)
}

func (r *productRepository) ReconcileAvailability(ctx context.Context) (int64, error) {
	query := `UPDATE products SET availability = quantity_available > 0, updated_on = $1
	          WHERE availability <> (quantity_available > 0)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, classify("reconcile availability", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("productRepository.ReconcileAvailability", n, err)
	return n, classify("reconcile availability", err)
}

func requireRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return classify(op, sql.ErrNoRows)
	}
	return nil
}
