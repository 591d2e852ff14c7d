package db

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	moneyPrecision = 14
	moneyScale     = 2
)

// Money is a nullable amount stored with two decimals. SQLite gets a bare
// numeric column: its migrator cannot re-read "decimal(p,s)" from the table DDL.
type Money struct {
	decimal.NullDecimal
}

// NewMoney rounds value to cents. A nil value is NULL.
func NewMoney(value *decimal.Decimal) Money {
	if value == nil {
		return Money{}
	}
	return Money{NullDecimal: decimal.NullDecimal{Decimal: value.Round(moneyScale), Valid: true}}
}

func (Money) GormDataType() string {
	return "decimal"
}

func (Money) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "numeric"
	}
	precision, scale := moneyPrecision, moneyScale
	if field != nil && field.Precision > 0 {
		precision, scale = field.Precision, field.Scale
	}
	return fmt.Sprintf("decimal(%d,%d)", precision, scale)
}
