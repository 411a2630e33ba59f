package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/chemflo/internal/core/domain"
	"github.com/rl1809/chemflo/internal/port"
)

// MemoryAdapter is a thread-safe in-memory port.Store. It backs the server
// when STORE=memory and the service tests.
type MemoryAdapter struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	inventory map[string]domain.Inventory
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products:  make(map[string]domain.Product),
		inventory: make(map[string]domain.Inventory),
	}
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].ProductName != products[j].ProductName {
			return products[i].ProductName < products[j].ProductName
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) FindProductByCAS(ctx context.Context, cas string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.findByCAS(cas); ok {
		return &p, nil
	}
	return nil, nil
}

func (m *MemoryAdapter) findByCAS(cas string) (domain.Product, bool) {
	for _, p := range m.products {
		if p.CASNumber == cas {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, product domain.Product, inventory domain.Inventory) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; ok {
		return port.ErrDuplicateKey
	}
	if _, ok := m.inventory[inventory.ID]; ok {
		return port.ErrDuplicateKey
	}
	if _, ok := m.findByCAS(product.CASNumber); ok {
		return port.ErrDuplicateKey
	}

	m.products[product.ID] = product
	m.inventory[inventory.ID] = inventory
	return nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, product domain.Product) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.products[product.ID]
	if !ok {
		return false, nil
	}
	if holder, ok := m.findByCAS(product.CASNumber); ok && holder.ID != product.ID {
		return false, port.ErrDuplicateKey
	}

	stored.ProductName = product.ProductName
	stored.CASNumber = product.CASNumber
	stored.UnitOfMeasurement = product.UnitOfMeasurement
	stored.UpdatedAt = product.UpdatedAt
	m.products[product.ID] = stored
	return true, nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return false, nil
	}
	for invID, inv := range m.inventory {
		if inv.ProductID == id {
			delete(m.inventory, invID)
		}
	}
	delete(m.products, id)
	return true, nil
}

func (m *MemoryAdapter) join(inv domain.Inventory) domain.InventoryRecord {
	p := m.products[inv.ProductID]
	return domain.InventoryRecord{
		Inventory:         inv,
		ProductName:       p.ProductName,
		CASNumber:         p.CASNumber,
		UnitOfMeasurement: p.UnitOfMeasurement,
	}
}

func (m *MemoryAdapter) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]domain.InventoryRecord, 0, len(m.inventory))
	for _, inv := range m.inventory {
		records = append(records, m.join(inv))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ProductName != records[j].ProductName {
			return records[i].ProductName < records[j].ProductName
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (m *MemoryAdapter) GetInventory(ctx context.Context, id string) (*domain.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.inventory[id]
	if !ok {
		return nil, nil
	}
	rec := m.join(inv)
	return &rec, nil
}

func (m *MemoryAdapter) ApplyStockMovement(ctx context.Context, id string, movement domain.MovementType, quantity, maxStock decimal.Decimal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.inventory[id]
	if !ok {
		return false, nil
	}

	var next decimal.Decimal
	switch movement {
	case domain.MovementIn:
		next = inv.CurrentStock.Add(quantity)
		if next.GreaterThan(maxStock) {
			return false, nil
		}
	case domain.MovementOut:
		next = inv.CurrentStock.Sub(quantity)
		if next.IsNegative() {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unknown movement type %q", movement)
	}

	inv.CurrentStock = next
	inv.Version++
	inv.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	m.inventory[id] = inv
	return true, nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}
