package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pgconn", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pgconn_other", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: tenants.mobile"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsForeignKeyErr(t *testing.T) {
	if !IsForeignKeyErr(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("expected pg foreign key violation to match")
	}
	if !IsForeignKeyErr(errors.New("FOREIGN KEY constraint failed")) {
		t.Fatalf("expected sqlite foreign key violation to match")
	}
	if IsForeignKeyErr(errors.New("boom")) {
		t.Fatalf("expected unrelated error not to match")
	}
}

func TestIsConnectionErr(t *testing.T) {
	if !IsConnectionErr(driver.ErrBadConn) {
		t.Fatalf("expected bad conn to be a connection error")
	}
	if IsConnectionErr(fmt.Errorf("query: %w", context.DeadlineExceeded)) {
		t.Fatalf("expected caller deadline not to be a connection error")
	}
	if !IsConnectionErr(&pgconn.PgError{Code: "08006"}) {
		t.Fatalf("expected class 08 to be a connection error")
	}
	if IsConnectionErr(gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found to be classified elsewhere")
	}
}

func TestNewTestIsolatesDatabases(t *testing.T) {
	type probe struct {
		ID   int64
		Name string
	}

	first, err := NewTest()
	if err != nil {
		t.Fatalf("failed to open first db: %v", err)
	}
	second, err := NewTest()
	if err != nil {
		t.Fatalf("failed to open second db: %v", err)
	}
	if err := first.AutoMigrate(&probe{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := first.Create(&probe{ID: 1, Name: "a"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	if second.Migrator().HasTable(&probe{}) {
		t.Fatalf("expected second database to be empty")
	}
	if err := Ping(context.Background(), first); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
