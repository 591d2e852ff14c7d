package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/lookup/domain"
	"github.com/smallbiznis/estately/internal/lookup/repository"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type allowAll struct {
	calls int
}

func (a *allowAll) Authorize(ctx context.Context, tenantID, userID snowflake.ID, object, action string) error {
	a.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *allowAll) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.LookupValue{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	authz := &allowAll{}
	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Authz: authz,
	}).(*Service)
	return svc, conn, authz
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Villa":             "villa",
		"  Twin   House ":   "twin-house",
		"Semi\tFinished\nX": "semi-finished-x",
		"":                  "",
	}
	for in, want := range cases {
		if got := domain.NormalizeKey(in); got != want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	tenantID := snowflake.ID(100)

	first, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: tenantID, Name: "Residential", Color: "#111111", SortOrder: 1})
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: tenantID, Name: " residential ", Color: "#222222", SortOrder: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "#222222", second.Color)
	assert.Equal(t, 3, second.SortOrder)
	assert.Equal(t, "residential", second.Key)

	var count int64
	require.NoError(t, conn.Model(&domain.LookupValue{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertSameNameDifferentTenantOrKind(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: 1, Name: "Commercial"})
	require.NoError(t, err)
	b, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: 2, Name: "Commercial"})
	require.NoError(t, err)
	c, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindType, TenantID: 1, Name: "Commercial"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestUpsertValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   domain.UpsertRequest
		field string
	}{
		{name: "unknown kind", req: domain.UpsertRequest{Kind: "colour", TenantID: 1, Name: "x"}, field: "kind"},
		{name: "blank name", req: domain.UpsertRequest{Kind: domain.KindRegion, TenantID: 1, Name: "   "}, field: "name"},
		{name: "shared category", req: domain.UpsertRequest{Kind: domain.KindCategory, Name: "Shared"}, field: "tenant_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tc.req)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestListActiveOrderingAndSharedRows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tenantID := snowflake.ID(7)

	_, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, Name: "EGP", Code: "EGP", Symbol: "E£", SortOrder: 1})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, Name: "USD", Code: "USD", Symbol: "$", SortOrder: 2})
	require.NoError(t, err)
	local, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, TenantID: tenantID, Name: "AED", Code: "AED", SortOrder: 2})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, TenantID: 8, Name: "SAR", SortOrder: 0})
	require.NoError(t, err)

	values, err := svc.ListActive(ctx, domain.KindCurrency, tenantID)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, "EGP", values[0].Name)
	assert.Equal(t, "AED", values[1].Name)
	assert.Equal(t, "USD", values[2].Name)

	_, err = svc.SetActive(ctx, tenantID, 0, local.ID, false)
	require.NoError(t, err)

	values, err = svc.ListActive(ctx, domain.KindCurrency, tenantID)
	require.NoError(t, err)
	assert.Len(t, values, 2, "deactivated rows drop out of the cached list")

	row, err := svc.Get(ctx, tenantID, local.ID)
	require.NoError(t, err)
	assert.False(t, row.IsActive, "deactivated rows stay readable by id")
}

func TestListActiveReturnsIndependentCopies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tenantID := snowflake.ID(7)

	_, err := svc.Upsert(ctx, domain.UpsertRequest{
		Kind: domain.KindCurrency, Name: "EGP", Code: "EGP", Attributes: map[string]any{"decimals": 2},
	})
	require.NoError(t, err)

	// first call fills the cache, second is served from it
	for range 2 {
		values, err := svc.ListActive(ctx, domain.KindCurrency, tenantID)
		require.NoError(t, err)
		require.Len(t, values, 1)
		values[0].Name = "changed"
		values[0].Attributes["decimals"] = 0
	}

	values, err := svc.ListActive(ctx, domain.KindCurrency, tenantID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "EGP", values[0].Name)
	assert.EqualValues(t, 2, values[0].Attributes["decimals"])
}

func TestSharedUpsertInvalidatesEveryTenantList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListActive(ctx, domain.KindCurrency, 1)
	require.NoError(t, err)
	_, err = svc.ListActive(ctx, domain.KindCurrency, 2)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, Name: "EUR", Code: "EUR"})
	require.NoError(t, err)

	for _, tenantID := range []snowflake.ID{1, 2} {
		values, err := svc.ListActive(ctx, domain.KindCurrency, tenantID)
		require.NoError(t, err)
		assert.Len(t, values, 1)
	}
}

func TestTenantActorCannotWriteSharedRows(t *testing.T) {
	svc, _, authz := newTestService(t)

	_, err := svc.Upsert(context.Background(), domain.UpsertRequest{Kind: domain.KindCurrency, ActorID: 9, Name: "GBP"})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "got %v", err)

	_, err = svc.Upsert(context.Background(), domain.UpsertRequest{Kind: domain.KindRegion, TenantID: 1, ActorID: 9, Name: "Giza"})
	require.NoError(t, err)
	assert.Equal(t, 1, authz.calls)
}

func TestResolveRejectsForeignAndMismatchedRows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	own, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: 1, Name: "Residential"})
	require.NoError(t, err)
	foreign, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCategory, TenantID: 2, Name: "Residential"})
	require.NoError(t, err)
	shared, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCurrency, Name: "EGP"})
	require.NoError(t, err)

	rows, err := svc.Resolve(ctx, nil, "property", 1, []domain.Reference{
		{Field: "category_id", Kind: domain.KindCategory, ID: &own.ID},
		{Field: "currency_id", Kind: domain.KindCurrency, ID: &shared.ID},
		{Field: "type_id", Kind: domain.KindType},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.Resolve(ctx, nil, "property", 1, []domain.Reference{
		{Field: "category_id", Kind: domain.KindCategory, ID: &foreign.ID},
	})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "property", appErr.Entity)
	assert.Equal(t, "category_id", appErr.Field)

	_, err = svc.Resolve(ctx, nil, "property", 1, []domain.Reference{
		{Field: "type_id", Kind: domain.KindType, ID: &own.ID},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "type_id", appErr.Field)
}

func TestParentChildLookups(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cairo, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindRegion, TenantID: 1, Name: "Cairo"})
	require.NoError(t, err)
	giza, err := svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindRegion, TenantID: 1, Name: "Giza"})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindDistrict, TenantID: 1, ParentID: &cairo.ID, Name: "Maadi"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindDistrict, TenantID: 1, ParentID: &giza.ID, Name: "Dokki"})
	require.NoError(t, err)

	districts, err := svc.ListChildren(ctx, domain.KindDistrict, 1, cairo.ID)
	require.NoError(t, err)
	require.Len(t, districts, 1)
	assert.Equal(t, "Maadi", districts[0].Name)

	_, err = svc.Upsert(ctx, domain.UpsertRequest{Kind: domain.KindCompound, TenantID: 1, ParentID: &cairo.ID, Name: "Wrong Parent"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	catalog, err := svc.Catalog(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, catalog[domain.KindRegion], 2)
	assert.Len(t, catalog[domain.KindDistrict], 2)
	assert.Empty(t, catalog[domain.KindCurrency])
}
