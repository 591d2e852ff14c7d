package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not_found", err: gorm.ErrRecordNotFound, want: KindNotFound},
		{name: "duplicate", err: gorm.ErrDuplicatedKey, want: KindConflict},
		{name: "pg_duplicate", err: &pgconn.PgError{Code: "23505"}, want: KindConflict},
		{name: "foreign_key", err: &pgconn.PgError{Code: "23503"}, want: KindValidation},
		{name: "bad_conn", err: driver.ErrBadConn, want: KindConnection},
		{name: "cancelled", err: context.Canceled, want: KindInternal},
		{name: "other", err: errors.New("boom"), want: KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(Classify(tc.err, "property")))
		})
	}
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	original := Forbidden("property", errors.New("role cannot edit"))
	got := Classify(fmt.Errorf("update: %w", original), "lead")

	var appErr *Error
	assert.True(t, errors.As(got, &appErr))
	assert.Equal(t, KindForbidden, appErr.Kind)
	assert.Equal(t, "property", appErr.Entity)
}

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("lead"))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound, Entity: "lead"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound, Entity: "property"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindForbidden}))
}

func TestErrorMessageNamesEntityAndField(t *testing.T) {
	err := Validationf("property", "category_id", "belongs to another tenant")
	assert.Equal(t, "validation: property.category_id: belongs to another tenant", err.Error())
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, Kind(""), KindOf(nil))
}
