package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Inventory struct {
	ID           string
	ProductID    string
	CurrentStock decimal.Decimal
	Version      int64 // bumped by every stock movement
	UpdatedAt    time.Time
}

// InventoryRecord is an inventory row joined with its product's descriptive fields.
type InventoryRecord struct {
	Inventory
	ProductName       string
	CASNumber         string
	UnitOfMeasurement Unit
}

type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)
