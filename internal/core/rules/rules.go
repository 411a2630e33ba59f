// Package rules holds the pure validation and stock arithmetic used by the
// inventory service. Nothing here touches the store.
package rules

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rl1809/chemflo/internal/core/domain"
)

// Precision is the number of fractional digits kept for stock quantities.
// It matches the DECIMAL(15,3) inventory column.
const Precision int32 = 3

// maxIntegerDigits is the number of digits left of the point in MaxStock.
const maxIntegerDigits = 12

var (
	// MaxStock is the largest value the inventory column can hold.
	MaxStock = decimal.RequireFromString("999999999999.999")

	validate = validator.New()

	unitTag = "oneof=" + strings.Join(unitSymbols(), " ")
)

type productFields struct {
	Name string `validate:"required"`
	CAS  string `validate:"required"`
	Unit string `validate:"required"`
}

// ValidateProductFields fails when any of name, cas or unit is blank.
func ValidateProductFields(name, cas, unit string) error {
	fields := productFields{
		Name: strings.TrimSpace(name),
		CAS:  strings.TrimSpace(cas),
		Unit: strings.TrimSpace(unit),
	}
	if err := validate.Struct(fields); err != nil {
		return domain.NewValidationError("All fields are required")
	}
	return nil
}

// ValidateUnit fails unless unit is one of domain.Units. Symbols are case
// sensitive: "ml" is rejected, "mL" accepted.
func ValidateUnit(unit string) error {
	if err := validate.Var(unit, unitTag); err != nil {
		return domain.NewValidationError("Unit of measurement must be one of: " + strings.Join(unitSymbols(), ", "))
	}
	return nil
}

func unitSymbols() []string {
	out := make([]string, len(domain.Units))
	for i, u := range domain.Units {
		out[i] = string(u)
	}
	return out
}

// ParseQuantity parses a movement quantity, rounding half away from zero to
// Precision digits. The rounded value must be positive and within MaxStock.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errInvalidQuantity()
	}

	q, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errInvalidQuantity()
	}

	// Rounding rescales the coefficient by the exponent, so an input like
	// "1e1000000000" must be rejected on magnitude before any arithmetic.
	magnitude := q.NumDigits() + int(q.Exponent())
	if magnitude > maxIntegerDigits || magnitude < -int(Precision) {
		return decimal.Zero, errInvalidQuantity()
	}

	q = q.Round(Precision)
	if !q.IsPositive() || q.GreaterThan(MaxStock) {
		return decimal.Zero, errInvalidQuantity()
	}
	return q, nil
}

func errInvalidQuantity() error {
	return domain.NewValidationError("Quantity must be a positive number")
}

// StockLimitError is returned when an IN would push stock past MaxStock.
func StockLimitError() error {
	return domain.NewValidationError("Stock cannot exceed " + MaxStock.String())
}

// ApplyMovement computes the stock left after moving quantity in or out.
func ApplyMovement(current decimal.Decimal, movement domain.MovementType, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch movement {
	case domain.MovementIn:
		next := current.Add(quantity)
		if next.GreaterThan(MaxStock) {
			return current, StockLimitError()
		}
		return next, nil
	case domain.MovementOut:
		next := current.Sub(quantity)
		if next.IsNegative() {
			return current, domain.NewInsufficientStockError()
		}
		return next, nil
	default:
		return current, domain.NewValidationError("Type must be IN or OUT")
	}
}
