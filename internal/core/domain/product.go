package domain

import "time"

type Unit string

const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitMilligram  Unit = "mg"
	UnitLiter      Unit = "L"
	UnitMilliliter Unit = "mL"
	UnitPieces     Unit = "pieces"
)

// Units lists the accepted unit symbols in display order.
var Units = []Unit{UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitMilligram, UnitPieces}

type Product struct {
	ID                string
	ProductName       string
	CASNumber         string
	UnitOfMeasurement Unit
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
