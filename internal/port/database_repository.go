package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/chemflo/internal/core/domain"
)

var (
	// ErrDuplicateKey reports a unique-constraint violation on insert or update.
	ErrDuplicateKey = errors.New("duplicate key")
)

// ProductRepository persists products. Lookups return (nil, nil) when no row matches.
type ProductRepository interface {
	// ListProducts returns all products ordered by name
	ListProducts(ctx context.Context) ([]domain.Product, error)

	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// FindProductByCAS looks a product up by its CAS number
	FindProductByCAS(ctx context.Context, cas string) (*domain.Product, error)

	// CreateProduct inserts the product and its inventory record in one transaction
	CreateProduct(ctx context.Context, product domain.Product, inventory domain.Inventory) error

	// UpdateProduct rewrites name, CAS and unit; ErrDuplicateKey on a CAS collision
	UpdateProduct(ctx context.Context, product domain.Product) (bool, error)

	// DeleteProduct removes the inventory record then the product in one transaction
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

// InventoryRepository persists stock levels.
type InventoryRepository interface {
	// ListInventory returns all records joined with their product, ordered by product name
	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)

	GetInventory(ctx context.Context, id string) (*domain.InventoryRecord, error)

	// ApplyStockMovement adds or removes quantity in a single atomic write.
	// It returns false, leaving the row untouched, when the record is missing,
	// an OUT would take stock below zero or an IN would exceed maxStock.
	ApplyStockMovement(ctx context.Context, id string, movement domain.MovementType, quantity, maxStock decimal.Decimal) (bool, error)
}

// Store is everything the inventory service needs from persistence.
type Store interface {
	ProductRepository
	InventoryRepository

	Ping(ctx context.Context) error
}
