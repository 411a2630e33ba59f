package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/chemflo/internal/core/domain"
	"github.com/rl1809/chemflo/internal/core/rules"
	"github.com/rl1809/chemflo/internal/port"
)

const (
	msgProductNotFound   = "Product not found"
	msgInventoryNotFound = "Inventory item not found"
	msgDuplicateCAS      = "CAS number must be unique"
)

// InventoryService owns the product registry and stock ledger rules. It keeps
// no mutable state of its own and is safe for concurrent use.
type InventoryService struct {
	store        port.Store
	idempotency  port.IdempotencyRepository
	logger       *zap.Logger
	storeTimeout time.Duration
}

func NewInventoryService(store port.Store, idempotency port.IdempotencyRepository, logger *zap.Logger, storeTimeout time.Duration) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		store:        store,
		idempotency:  idempotency,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

func (s *InventoryService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func (s *InventoryService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, domain.NewStoreError("list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *InventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.getProduct(ctx, id)
}

func (s *InventoryService) getProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.NewStoreError("get product", err)
	}
	if product == nil {
		return nil, domain.NewNotFoundError(msgProductNotFound)
	}
	return product, nil
}

func validateProduct(name, cas, unit string) error {
	if err := rules.ValidateProductFields(name, cas, unit); err != nil {
		return err
	}
	return rules.ValidateUnit(unit)
}

// CreateProduct registers a product together with a zero-stock inventory record.
func (s *InventoryService) CreateProduct(ctx context.Context, name, cas, unit string) (*domain.Product, error) {
	if err := validateProduct(name, cas, unit); err != nil {
		return nil, err
	}
	name, cas = strings.TrimSpace(name), strings.TrimSpace(cas)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	existing, err := s.store.FindProductByCAS(ctx, cas)
	if err != nil {
		return nil, domain.NewStoreError("check cas number", err)
	}
	if existing != nil {
		return nil, domain.NewConflictError(msgDuplicateCAS)
	}

	ts := now()
	product := domain.Product{
		ID:                uuid.NewString(),
		ProductName:       name,
		CASNumber:         cas,
		UnitOfMeasurement: domain.Unit(unit),
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	inventory := domain.Inventory{
		ID:           uuid.NewString(),
		ProductID:    product.ID,
		CurrentStock: decimal.Zero,
		UpdatedAt:    ts,
	}

	if err := s.store.CreateProduct(ctx, product, inventory); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return nil, domain.NewConflictError(msgDuplicateCAS)
		}
		return nil, domain.NewStoreError("create product", err)
	}

	s.logger.Debug("product created",
		zap.String("product_id", product.ID),
		zap.String("inventory_id", inventory.ID),
		zap.String("cas_number", product.CASNumber),
	)
	return &product, nil
}

// UpdateProduct rewrites a product's descriptive fields. The CAS number may
// change as long as no other product holds it.
func (s *InventoryService) UpdateProduct(ctx context.Context, id, name, cas, unit string) (*domain.Product, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	existing, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateProduct(name, cas, unit); err != nil {
		return nil, err
	}
	name, cas = strings.TrimSpace(name), strings.TrimSpace(cas)

	holder, err := s.store.FindProductByCAS(ctx, cas)
	if err != nil {
		return nil, domain.NewStoreError("check cas number", err)
	}
	if holder != nil && holder.ID != existing.ID {
		return nil, domain.NewConflictError(msgDuplicateCAS)
	}

	updated := *existing
	updated.ProductName = name
	updated.CASNumber = cas
	updated.UnitOfMeasurement = domain.Unit(unit)
	updated.UpdatedAt = now()

	ok, err := s.store.UpdateProduct(ctx, updated)
	if err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return nil, domain.NewConflictError(msgDuplicateCAS)
		}
		return nil, domain.NewStoreError("update product", err)
	}
	if !ok {
		return nil, domain.NewNotFoundError(msgProductNotFound)
	}
	return &updated, nil
}

// DeleteProduct removes a product and its inventory record.
func (s *InventoryService) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.getProduct(ctx, id); err != nil {
		return err
	}

	ok, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return domain.NewStoreError("delete product", err)
	}
	if !ok {
		return domain.NewNotFoundError(msgProductNotFound)
	}
	return nil
}

func (s *InventoryService) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	records, err := s.store.ListInventory(ctx)
	if err != nil {
		return nil, domain.NewStoreError("list inventory", err)
	}
	if records == nil {
		records = []domain.InventoryRecord{}
	}
	return records, nil
}

func (s *InventoryService) GetInventory(ctx context.Context, id string) (*domain.InventoryRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return s.getInventory(ctx, id)
}

func (s *InventoryService) getInventory(ctx context.Context, id string) (*domain.InventoryRecord, error) {
	record, err := s.store.GetInventory(ctx, id)
	if err != nil {
		return nil, domain.NewStoreError("get inventory", err)
	}
	if record == nil {
		return nil, domain.NewNotFoundError(msgInventoryNotFound)
	}
	return record, nil
}

// UpdateStock applies an IN or OUT movement to an inventory record. The store
// checks the bound and writes in one atomic step, so concurrent movements
// never drive stock negative and a valid movement never fails for contention.
func (s *InventoryService) UpdateStock(ctx context.Context, inventoryID string, movement domain.MovementType, rawQuantity string) (*domain.InventoryRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	record, err := s.getInventory(ctx, inventoryID)
	if err != nil {
		return nil, err
	}

	quantity, err := rules.ParseQuantity(rawQuantity)
	if err != nil {
		return nil, err
	}
	if _, err := rules.ApplyMovement(record.CurrentStock, movement, quantity); err != nil {
		return nil, err
	}

	applied, err := s.store.ApplyStockMovement(ctx, record.ID, movement, quantity, rules.MaxStock)
	if err != nil {
		return nil, domain.NewStoreError("update stock", err)
	}
	if !applied {
		return nil, s.rejectMovement(ctx, inventoryID, movement, quantity)
	}

	return s.getInventory(ctx, inventoryID)
}

// rejectMovement explains why the store refused a movement that passed the
// pre-check: the record went away or another movement changed the stock.
func (s *InventoryService) rejectMovement(ctx context.Context, inventoryID string, movement domain.MovementType, quantity decimal.Decimal) error {
	record, err := s.getInventory(ctx, inventoryID)
	if err != nil {
		return err
	}

	s.logger.Debug("stock movement refused by store",
		zap.String("inventory_id", inventoryID),
		zap.String("type", string(movement)),
		zap.String("quantity", quantity.String()),
		zap.String("current_stock", record.CurrentStock.String()),
	)

	if _, err := rules.ApplyMovement(record.CurrentStock, movement, quantity); err != nil {
		return err
	}
	if movement == domain.MovementOut {
		return domain.NewInsufficientStockError()
	}
	return rules.StockLimitError()
}

// ApplyMovementOnce is UpdateStock guarded by a client idempotency key. A key
// already seen for this record fails with a duplicate error; a movement that
// fails releases its key so the client may retry.
func (s *InventoryService) ApplyMovementOnce(ctx context.Context, key, inventoryID string, movement domain.MovementType, rawQuantity string) (*domain.InventoryRecord, error) {
	if key == "" || s.idempotency == nil {
		return s.UpdateStock(ctx, inventoryID, movement, rawQuantity)
	}

	claimKey := fmt.Sprintf("stock:%s:%s", inventoryID, key)

	claimCtx, cancel := s.bound(ctx)
	ok, err := s.idempotency.Claim(claimCtx, claimKey)
	cancel()
	if err != nil {
		return nil, domain.NewStoreError("claim idempotency key", err)
	}
	if !ok {
		return nil, domain.NewDuplicateError()
	}

	record, err := s.UpdateStock(ctx, inventoryID, movement, rawQuantity)
	if err != nil {
		releaseCtx, cancel := s.bound(context.WithoutCancel(ctx))
		defer cancel()
		if releaseErr := s.idempotency.Release(releaseCtx, claimKey); releaseErr != nil {
			s.logger.Warn("failed to release idempotency key",
				zap.String("key", claimKey),
				zap.Error(releaseErr),
			)
		}
		return nil, err
	}
	return record, nil
}

// Ping reports whether the store is reachable.
func (s *InventoryService) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return domain.NewStoreError("ping store", err)
	}
	return nil
}
