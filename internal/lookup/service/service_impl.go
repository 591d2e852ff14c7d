package service

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/cache"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/lookup/domain"
	"github.com/smallbiznis/estately/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	entityLookup = "lookup"

	listTTL = 5 * time.Minute
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Authz authorization.Service
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	authz authorization.Service
	clock clock.Clock
	lists cache.Cache[string, []domain.LookupValue]
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("lookup.service"),
		genID: p.GenID,
		repo:  p.Repo,
		authz: p.Authz,
		clock: c,
		lists: cache.NewTTLCache[string, []domain.LookupValue](),
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.LookupValue, error) {
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	if !kind.Valid() {
		return nil, apperr.Validation(entityLookup, "kind", domain.ErrInvalidKind)
	}
	name := strings.TrimSpace(req.Name)
	key := domain.NormalizeKey(name)
	if key == "" {
		return nil, apperr.Validation(entityLookup, "name", domain.ErrInvalidName)
	}
	if req.TenantID == 0 && !kind.Shareable() {
		return nil, apperr.Validation(entityLookup, "tenant_id", domain.ErrNotShareable)
	}
	if req.ActorID != 0 {
		if req.TenantID == 0 {
			return nil, apperr.Forbidden(entityLookup, authorization.ErrForbidden)
		}
		if err := s.authorize(ctx, req.TenantID, req.ActorID); err != nil {
			return nil, err
		}
	}

	attributes := datatypes.JSONMap{}
	for k, v := range req.Attributes {
		attributes[k] = v
	}

	var result domain.LookupValue
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ParentID != nil {
			if err := s.validateParent(ctx, tx, kind, req.TenantID, *req.ParentID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		mutable := map[string]any{
			"name":           name,
			"name_localized": strings.TrimSpace(req.NameLocalized),
			"color":          strings.TrimSpace(req.Color),
			"code":           strings.TrimSpace(req.Code),
			"symbol":         strings.TrimSpace(req.Symbol),
			"sort_order":     req.SortOrder,
			"attributes":     attributes,
			"parent_id":      req.ParentID,
			"updated_at":     now,
		}

		existing, err := s.repo.FindByKey(ctx, tx, kind, req.TenantID, key)
		if err != nil {
			return err
		}
		if existing == nil {
			value := domain.LookupValue{
				ID:            s.genID.Generate(),
				Kind:          kind,
				TenantID:      req.TenantID,
				Key:           key,
				ParentID:      req.ParentID,
				Name:          name,
				NameLocalized: strings.TrimSpace(req.NameLocalized),
				Color:         strings.TrimSpace(req.Color),
				Code:          strings.TrimSpace(req.Code),
				Symbol:        strings.TrimSpace(req.Symbol),
				Attributes:    attributes,
				IsActive:      true,
				SortOrder:     req.SortOrder,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			// savepoint so a unique violation does not abort the outer transaction
			err := tx.Transaction(func(sp *gorm.DB) error {
				return s.repo.Insert(ctx, sp, &value)
			})
			if err == nil {
				result = value
				return nil
			}
			if !db.IsDuplicateKeyErr(err) {
				return err
			}
			// lost a race with a concurrent upsert of the same key
			existing, err = s.repo.FindByKey(ctx, tx, kind, req.TenantID, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return apperr.Conflict(entityLookup, "name", errors.New("concurrent upsert"))
			}
		}

		if _, err := s.repo.Update(ctx, tx, existing.ID, mutable); err != nil {
			return err
		}
		updated, err := s.repo.FindByID(ctx, tx, existing.ID)
		if err != nil {
			return err
		}
		result = *updated
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}

	s.invalidate(kind, req.TenantID)
	return &result, nil
}

func (s *Service) validateParent(ctx context.Context, tx *gorm.DB, kind domain.Kind, tenantID, parentID snowflake.ID) error {
	want := kind.ParentKind()
	if want == "" {
		return apperr.Validation(entityLookup, "parent_id", domain.ErrInvalidParent)
	}
	parent, err := s.repo.FindByID(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.Kind != want || !parent.VisibleTo(tenantID) {
		return apperr.Validation(entityLookup, "parent_id", domain.ErrInvalidParent)
	}
	return nil
}

func (s *Service) ListActive(ctx context.Context, kind domain.Kind, tenantID snowflake.ID) ([]domain.LookupValue, error) {
	if !kind.Valid() {
		return nil, apperr.Validation(entityLookup, "kind", domain.ErrInvalidKind)
	}
	key := listKey(kind, tenantID)
	if cached, ok := s.lists.Get(key); ok {
		return cloneValues(cached), nil
	}

	items, err := s.repo.ListActive(ctx, s.db, domain.ListFilter{Kind: kind, TenantID: tenantID})
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	values := flatten(items)
	s.lists.Set(key, values, listTTL)
	return cloneValues(values), nil
}

func (s *Service) ListChildren(ctx context.Context, kind domain.Kind, tenantID, parentID snowflake.ID) ([]domain.LookupValue, error) {
	if !kind.Valid() || kind.ParentKind() == "" {
		return nil, apperr.Validation(entityLookup, "kind", domain.ErrInvalidKind)
	}
	items, err := s.repo.ListActive(ctx, s.db, domain.ListFilter{Kind: kind, TenantID: tenantID, ParentID: &parentID})
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	return flatten(items), nil
}

func (s *Service) Catalog(ctx context.Context, tenantID snowflake.ID) (map[domain.Kind][]domain.LookupValue, error) {
	items, err := s.repo.ListActive(ctx, s.db, domain.ListFilter{TenantID: tenantID})
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	catalog := make(map[domain.Kind][]domain.LookupValue, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		catalog[kind] = []domain.LookupValue{}
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		catalog[item.Kind] = append(catalog[item.Kind], *item)
	}
	return catalog, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id snowflake.ID) (*domain.LookupValue, error) {
	value, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	if value == nil || !value.VisibleTo(tenantID) {
		return nil, apperr.NotFound(entityLookup)
	}
	return value, nil
}

func (s *Service) SetActive(ctx context.Context, tenantID, actorID, id snowflake.ID, active bool) (*domain.LookupValue, error) {
	value, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	if value == nil || !value.VisibleTo(tenantID) {
		return nil, apperr.NotFound(entityLookup)
	}
	if value.TenantID != tenantID {
		return nil, apperr.Forbidden(entityLookup, authorization.ErrForbidden)
	}
	if actorID != 0 {
		if err := s.authorize(ctx, tenantID, actorID); err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.Update(ctx, s.db, id, map[string]any{
		"is_active":  active,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	s.invalidate(value.Kind, value.TenantID)

	value.IsActive = active
	return value, nil
}

func (s *Service) Resolve(ctx context.Context, tx *gorm.DB, entity string, tenantID snowflake.ID, refs []domain.Reference) (map[snowflake.ID]domain.LookupValue, error) {
	if tx == nil {
		tx = s.db
	}
	ids := make([]snowflake.ID, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != nil && *ref.ID != 0 {
			ids = append(ids, *ref.ID)
		}
	}
	rows, err := s.Hydrate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if ref.ID == nil {
			continue
		}
		row, ok := rows[*ref.ID]
		if !ok || row.Kind != ref.Kind || !row.VisibleTo(tenantID) {
			return nil, apperr.Validation(entity, ref.Field, domain.ErrInvalidReference)
		}
		if !row.IsActive {
			return nil, apperr.Validation(entity, ref.Field, domain.ErrInactiveLookup)
		}
	}
	return rows, nil
}

func (s *Service) Hydrate(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.LookupValue, error) {
	if tx == nil {
		tx = s.db
	}
	rows := make(map[snowflake.ID]domain.LookupValue, len(ids))
	if len(ids) == 0 {
		return rows, nil
	}
	items, err := s.repo.FindByIDs(ctx, tx, dedupe(ids))
	if err != nil {
		return nil, apperr.Classify(err, entityLookup)
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		rows[item.ID] = *item
	}
	return rows, nil
}

func (s *Service) authorize(ctx context.Context, tenantID, actorID snowflake.ID) error {
	err := s.authz.Authorize(ctx, tenantID, actorID, authorization.ObjectLookup, authorization.ActionLookupManage)
	if err == nil {
		return nil
	}
	if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInactiveUser) {
		return apperr.Forbidden(entityLookup, err)
	}
	return apperr.Classify(err, entityLookup)
}

// invalidate drops cached lists that may include rows of kind owned by tenantID.
// Shared rows appear in every tenant's list.
func (s *Service) invalidate(kind domain.Kind, tenantID snowflake.ID) {
	if tenantID != 0 {
		s.lists.Delete(listKey(kind, tenantID))
		return
	}
	prefix := cache.Key(string(kind)) + "|"
	s.lists.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func listKey(kind domain.Kind, tenantID snowflake.ID) string {
	return cache.Key(string(kind), tenantID.String())
}

func flatten(items []*domain.LookupValue) []domain.LookupValue {
	values := make([]domain.LookupValue, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		values = append(values, *item)
	}
	return values
}

// cloneValues copies a cached list so callers cannot write through to it.
func cloneValues(values []domain.LookupValue) []domain.LookupValue {
	out := make([]domain.LookupValue, len(values))
	for i, value := range values {
		if value.ParentID != nil {
			parent := *value.ParentID
			value.ParentID = &parent
		}
		if value.Attributes != nil {
			value.Attributes = datatypes.JSONMap(maps.Clone(map[string]any(value.Attributes)))
		}
		out[i] = value
	}
	return out
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
