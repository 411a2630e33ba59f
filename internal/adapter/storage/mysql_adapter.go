package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/chemflo/internal/core/domain"
	"github.com/rl1809/chemflo/internal/port"
)

const mysqlDuplicateEntry = 1062

const productColumns = `id, product_name, cas_number, unit_of_measurement, created_at, updated_at`

const inventorySelect = `
	SELECT i.id, i.product_id, i.current_stock, i.version, i.updated_at,
	       p.product_name, p.cas_number, p.unit_of_measurement
	FROM inventory i
	INNER JOIN products p ON p.id = i.product_id`

type MySQLOptions struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
}

// OpenMySQL opens a pool and verifies it with a ping. Times are read and
// written as UTC.
func OpenMySQL(ctx context.Context, opts MySQLOptions) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// Report matched rather than changed rows so a no-op UPDATE still counts.
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// MySQLAdapter implements port.Store on database/sql. It only issues portable
// SQL, so tests run it against SQLite as well.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p    domain.Product
		unit string
	)
	err := row.Scan(&p.ID, &p.ProductName, &p.CASNumber, &unit, &p.CreatedAt, &p.UpdatedAt)
	p.UnitOfMeasurement = domain.Unit(unit)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func scanInventory(row rowScanner) (domain.InventoryRecord, error) {
	var (
		rec  domain.InventoryRecord
		unit string
	)
	err := row.Scan(
		&rec.ID, &rec.ProductID, &rec.CurrentStock, &rec.Version, &rec.UpdatedAt,
		&rec.ProductName, &rec.CASNumber, &unit,
	)
	rec.UnitOfMeasurement = domain.Unit(unit)
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, err
}

func wrapWriteErr(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w", op, port.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY product_name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (m *MySQLAdapter) getProductBy(ctx context.Context, column, value string) (*domain.Product, error) {
	p, err := scanProduct(m.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.getProductBy(ctx, "id", id)
}

func (m *MySQLAdapter) FindProductByCAS(ctx context.Context, cas string) (*domain.Product, error) {
	return m.getProductBy(ctx, "cas_number", cas)
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product domain.Product, inventory domain.Inventory) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID, product.ProductName, product.CASNumber, string(product.UnitOfMeasurement),
		product.CreatedAt.UTC(), product.UpdatedAt.UTC(),
	)
	if err != nil {
		return wrapWriteErr("insert product", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (id, product_id, current_stock, version, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		inventory.ID, inventory.ProductID, inventory.CurrentStock.StringFixed(3),
		inventory.Version, inventory.UpdatedAt.UTC(),
	)
	if err != nil {
		return wrapWriteErr("insert inventory", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, product domain.Product) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET product_name = ?, cas_number = ?, unit_of_measurement = ?, updated_at = ?
		WHERE id = ?`,
		product.ProductName, product.CASNumber, string(product.UnitOfMeasurement),
		product.UpdatedAt.UTC(), product.ID,
	)
	if err != nil {
		return false, wrapWriteErr("update product", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update product: %w", err)
	}
	return rows > 0, nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE product_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete inventory: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete product: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (m *MySQLAdapter) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, inventorySelect+`
		ORDER BY p.product_name ASC, i.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	records := []domain.InventoryRecord{}
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return records, nil
}

func (m *MySQLAdapter) GetInventory(ctx context.Context, id string) (*domain.InventoryRecord, error) {
	rec, err := scanInventory(m.db.QueryRowContext(ctx, inventorySelect+`
		WHERE i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &rec, nil
}

// ApplyStockMovement moves stock with one conditional UPDATE, so the guard
// and the write cannot interleave with another movement. ROUND keeps SQLite,
// which stores the column as REAL, on three decimals.
func (m *MySQLAdapter) ApplyStockMovement(ctx context.Context, id string, movement domain.MovementType, quantity, maxStock decimal.Decimal) (bool, error) {
	var query string
	args := []any{quantity.StringFixed(3), time.Now().UTC().Truncate(time.Second), id, quantity.StringFixed(3)}

	switch movement {
	case domain.MovementIn:
		query = `
			UPDATE inventory
			SET current_stock = ROUND(current_stock + CAST(? AS DECIMAL(15,3)), 3), version = version + 1, updated_at = ?
			WHERE id = ? AND current_stock + CAST(? AS DECIMAL(15,3)) <= CAST(? AS DECIMAL(15,3))`
		args = append(args, maxStock.StringFixed(3))
	case domain.MovementOut:
		query = `
			UPDATE inventory
			SET current_stock = ROUND(current_stock - CAST(? AS DECIMAL(15,3)), 3), version = version + 1, updated_at = ?
			WHERE id = ? AND current_stock >= CAST(? AS DECIMAL(15,3))`
	default:
		return false, fmt.Errorf("unknown movement type %q", movement)
	}

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update inventory: %w", err)
	}
	return rows > 0, nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
