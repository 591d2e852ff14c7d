package db

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type moneyRow struct {
	ID     uint  `gorm:"primaryKey"`
	Amount Money `gorm:"precision:14;scale:2"`
	Empty  Money `gorm:"precision:14;scale:2"`
}

func TestMoneyColumnMigratesRepeatedly(t *testing.T) {
	conn, err := NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	require.NoError(t, conn.AutoMigrate(&moneyRow{}))
	require.NoError(t, conn.AutoMigrate(&moneyRow{}))

	amount := decimal.RequireFromString("1500000.456")
	row := moneyRow{Amount: NewMoney(&amount), Empty: NewMoney(nil)}
	require.NoError(t, conn.Create(&row).Error)

	var got moneyRow
	require.NoError(t, conn.First(&got, row.ID).Error)
	assert.True(t, got.Amount.Valid)
	assert.True(t, decimal.RequireFromString("1500000.46").Equal(got.Amount.Decimal), "amount %s", got.Amount.Decimal)
	assert.False(t, got.Empty.Valid)
}

func TestMoneyColumnTypePerDialect(t *testing.T) {
	field := &schema.Field{Precision: 14, Scale: 2}
	cases := []struct {
		name      string
		dialector gorm.Dialector
		want      string
	}{
		{name: "postgres", dialector: postgres.Dialector{Config: &postgres.Config{}}, want: "decimal(14,2)"},
		{name: "mysql", dialector: mysql.Dialector{Config: &mysql.Config{}}, want: "decimal(14,2)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &gorm.DB{Config: &gorm.Config{Dialector: tc.dialector}}
			assert.Equal(t, tc.want, Money{}.GormDBDataType(conn, field))
		})
	}

	conn, err := NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	assert.Equal(t, "numeric", Money{}.GormDBDataType(conn, field))
	assert.Equal(t, "decimal(14,2)", Money{}.GormDBDataType(&gorm.DB{Config: &gorm.Config{Dialector: postgres.Dialector{Config: &postgres.Config{}}}}, &schema.Field{}))
}

func TestMoneyJSON(t *testing.T) {
	amount := decimal.NewFromInt(950000)
	raw, err := NewMoney(&amount).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"950000"`, string(raw))

	raw, err = NewMoney(nil).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}
