package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/internal/activity/domain"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/config"
	leaddomain "github.com/smallbiznis/estately/internal/lead/domain"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/pkg/db/option"
	"github.com/smallbiznis/estately/pkg/db/pagination"
	"github.com/smallbiznis/estately/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityActivity = "activity"

	maxTitleLength = 255
	defaultWindow  = 24 * time.Hour
	maxWindow      = 90 * 24 * time.Hour
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Users tenantdomain.Service
	Authz authorization.Service
	Query *config.QueryConfigHolder `optional:"true"`
	Clock clock.Clock               `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	users tenantdomain.Service
	authz authorization.Service
	query *config.QueryConfigHolder
	clock clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		repo:  p.Repo,
		users: p.Users,
		authz: p.Authz,
		query: p.Query,
		clock: c,
	}
}

func (s *Service) Create(ctx context.Context, tenantID, actorID snowflake.ID, draft domain.Draft) (*domain.Activity, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityActivity, "tenant_id", domain.ErrInvalidTenant)
	}

	activityType := domain.Type(strings.ToLower(strings.TrimSpace(string(draft.Type))))
	if !activityType.Valid() {
		return nil, apperr.Validation(entityActivity, "type", domain.ErrInvalidType)
	}
	title, err := validateTitle(draft.Title)
	if err != nil {
		return nil, err
	}
	priority := domain.Priority(strings.ToLower(strings.TrimSpace(string(draft.Priority))))
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation(entityActivity, "priority", domain.ErrInvalidPriority)
	}
	relatedType := domain.RelatedType(strings.ToLower(strings.TrimSpace(string(draft.RelatedType))))
	if (relatedType == "") != (draft.RelatedID == nil) {
		return nil, apperr.Validation(entityActivity, "related_id", domain.ErrInvalidRelated)
	}
	if relatedType != "" && !relatedType.Valid() {
		return nil, apperr.Validation(entityActivity, "related_type", domain.ErrInvalidRelated)
	}

	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionActivityCreate); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, tenantID, draft.AssignedToID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	activity := &domain.Activity{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		Type:         activityType,
		Title:        title,
		Description:  strings.TrimSpace(draft.Description),
		Status:       domain.StatusPending,
		Priority:     priority,
		DueAt:        utc(draft.DueAt),
		RelatedType:  relatedType,
		RelatedID:    draft.RelatedID,
		AssignedToID: draft.AssignedToID,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		if err := checkRelated(ctx, tx, tenantID, activity.RelatedType, activity.RelatedID); err != nil {
			return err
		}
		return s.repo.WithTrx(tx).Create(ctx, activity)
	})
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	return activity, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id snowflake.ID) (*domain.Activity, error) {
	if tenantID == 0 {
		return nil, apperr.NotFound(entityActivity)
	}
	activity, err := s.repo.FindOne(ctx, &domain.Activity{ID: id, TenantID: tenantID})
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	if activity == nil {
		return nil, apperr.NotFound(entityActivity)
	}
	return activity, nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, filter domain.ListFilter) (*domain.ListResult, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityActivity, "tenant_id", domain.ErrInvalidTenant)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation(entityActivity, "status", domain.ErrInvalidStatus)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperr.Validation(entityActivity, "type", domain.ErrInvalidType)
	}
	if filter.RelatedType != "" && !filter.RelatedType.Valid() {
		return nil, apperr.Validation(entityActivity, "related_type", domain.ErrInvalidRelated)
	}
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, apperr.Validation(entityActivity, "page_token", domain.ErrInvalidCursor)
		}
		if _, err := cursor.Time(); err != nil {
			return nil, apperr.Validation(entityActivity, "page_token", domain.ErrInvalidCursor)
		}
	}

	size := s.query.Get().PageSize(filter.PageSize)
	query := &domain.Activity{
		TenantID:     tenantID,
		Status:       filter.Status,
		Type:         filter.Type,
		RelatedType:  filter.RelatedType,
		RelatedID:    filter.RelatedID,
		AssignedToID: filter.AssignedToID,
	}
	items, err := s.repo.Find(ctx, query,
		option.ApplyPagination(pagination.Pagination{PageToken: filter.PageToken, PageSize: size}),
		option.WithSortBy(option.QuerySortBy{}),
	)
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}

	pageInfo := pagination.BuildCursorPageInfo(items, size, func(activity *domain.Activity) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        activity.ID.String(),
			CreatedAt: activity.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > size {
		items = items[:size]
	}
	return &domain.ListResult{Items: flatten(items), PageInfo: *pageInfo}, nil
}

func (s *Service) Update(ctx context.Context, tenantID, actorID, id snowflake.ID, patch domain.Patch) (*domain.Activity, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityActivity, "tenant_id", domain.ErrInvalidTenant)
	}

	now := s.clock.Now()
	values := map[string]any{}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		values["title"] = title
	}
	if patch.Description != nil {
		values["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		priority := domain.Priority(strings.ToLower(strings.TrimSpace(string(*patch.Priority))))
		if !priority.Valid() {
			return nil, apperr.Validation(entityActivity, "priority", domain.ErrInvalidPriority)
		}
		values["priority"] = priority
	}
	if patch.Status != nil {
		status := domain.Status(strings.ToLower(strings.TrimSpace(string(*patch.Status))))
		if !status.Valid() {
			return nil, apperr.Validation(entityActivity, "status", domain.ErrInvalidStatus)
		}
		values["status"] = status
		if status == domain.StatusCompleted {
			values["completed_at"] = now
		} else {
			values["completed_at"] = nil
		}
	}
	switch {
	case patch.ClearDueAt:
		values["due_at"] = nil
	case patch.DueAt != nil:
		values["due_at"] = utc(patch.DueAt)
	}
	switch {
	case patch.Unassign:
		values["assigned_to_id"] = nil
	case patch.AssignedToID != nil:
		values["assigned_to_id"] = *patch.AssignedToID
	}

	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionActivityUpdate); err != nil {
		return nil, err
	}
	if !patch.Unassign {
		if err := s.checkAssignee(ctx, tenantID, patch.AssignedToID); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 {
		return s.Get(ctx, tenantID, id)
	}
	values["updated_at"] = now
	return s.update(ctx, tenantID, id, values)
}

// Complete closes a pending activity. Completed or cancelled activities are
// a conflict.
func (s *Service) Complete(ctx context.Context, tenantID, actorID, id snowflake.ID) (*domain.Activity, error) {
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionActivityUpdate); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusPending {
		return nil, apperr.Conflict(entityActivity, "status", domain.ErrNotPending)
	}

	now := s.clock.Now()
	var activity *domain.Activity
	err = rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		affected, err := repo.Update(ctx,
			&domain.Activity{ID: id, TenantID: tenantID, Status: domain.StatusPending},
			map[string]any{"status": domain.StatusCompleted, "completed_at": now, "updated_at": now},
		)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.Conflict(entityActivity, "status", domain.ErrNotPending)
		}
		activity, err = repo.FindOne(ctx, &domain.Activity{ID: id, TenantID: tenantID})
		return err
	})
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	return activity, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, actorID, id snowflake.ID) error {
	if tenantID == 0 {
		return apperr.NotFound(entityActivity)
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionActivityDelete); err != nil {
		return err
	}
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTrx(tx).Delete(ctx, &domain.Activity{ID: id, TenantID: tenantID})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityActivity)
		}
		return nil
	})
	if err != nil {
		return apperr.Classify(err, entityActivity)
	}
	s.log.Info("activity deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("activity_id", id.String()),
	)
	return nil
}

func (s *Service) Upcoming(ctx context.Context, tenantID, assigneeID snowflake.ID, window time.Duration) ([]domain.Activity, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityActivity, "tenant_id", domain.ErrInvalidTenant)
	}
	if window < 0 || window > maxWindow {
		return nil, apperr.Validation(entityActivity, "window", domain.ErrInvalidWindow)
	}
	if window == 0 {
		window = defaultWindow
	}

	now := s.clock.Now()
	items, err := s.repo.Find(ctx, pendingFor(tenantID, assigneeID),
		option.ApplyOperator(option.Condition{Field: "due_at", Operator: option.GTE, Value: now}),
		option.ApplyOperator(option.Condition{Field: "due_at", Operator: option.LTE, Value: now.Add(window)}),
		option.WithSortBy(option.QuerySortBy{Field: "due_at", Allow: map[string]bool{"due_at": true}}),
		option.WithLimit(s.query.Get().MaxPageSize),
	)
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	return flatten(items), nil
}

func (s *Service) Overdue(ctx context.Context, tenantID, assigneeID snowflake.ID) ([]domain.Activity, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityActivity, "tenant_id", domain.ErrInvalidTenant)
	}
	items, err := s.repo.Find(ctx, pendingFor(tenantID, assigneeID),
		option.ApplyOperator(option.Condition{Field: "due_at", Operator: option.LT, Value: s.clock.Now()}),
		option.WithSortBy(option.QuerySortBy{Field: "due_at", Desc: true, Allow: map[string]bool{"due_at": true}}),
		option.WithLimit(s.query.Get().MaxPageSize),
	)
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	return flatten(items), nil
}

func (s *Service) update(ctx context.Context, tenantID, id snowflake.ID, values map[string]any) (*domain.Activity, error) {
	var activity *domain.Activity
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		affected, err := repo.Update(ctx, &domain.Activity{ID: id, TenantID: tenantID}, values)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityActivity)
		}
		activity, err = repo.FindOne(ctx, &domain.Activity{ID: id, TenantID: tenantID})
		if err != nil {
			return err
		}
		if activity == nil {
			return apperr.NotFound(entityActivity)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityActivity)
	}
	return activity, nil
}

// checkAssignee requires an active user of the same tenant.
func (s *Service) checkAssignee(ctx context.Context, tenantID snowflake.ID, userID *snowflake.ID) error {
	if userID == nil {
		return nil
	}
	user, err := s.users.GetUser(ctx, tenantID, *userID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return apperr.Validation(entityActivity, "assigned_to_id", domain.ErrInvalidAssignee)
	}
	if err != nil {
		return err
	}
	if user.TenantID != tenantID || user.Status != tenantdomain.UserActive {
		return apperr.Validation(entityActivity, "assigned_to_id", domain.ErrInvalidAssignee)
	}
	return nil
}

// checkRelated requires the lead or property to be an active row of tenantID.
func checkRelated(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, relatedType domain.RelatedType, relatedID *snowflake.ID) error {
	if relatedID == nil {
		return nil
	}
	stmt := tx.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, *relatedID)
	switch relatedType {
	case domain.RelatedLead:
		stmt = stmt.Model(&leaddomain.Lead{})
	case domain.RelatedProperty:
		stmt = stmt.Model(&propertydomain.Property{}).Where("is_active = ?", true)
	default:
		return apperr.Validation(entityActivity, "related_type", domain.ErrInvalidRelated)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Validation(entityActivity, "related_id", domain.ErrInvalidRelated)
	}
	return nil
}

// authorize skips the policy check for internal callers (actorID 0).
func (s *Service) authorize(ctx context.Context, tenantID, actorID snowflake.ID, action string) error {
	if actorID == 0 {
		return nil
	}
	if err := s.authz.Authorize(ctx, tenantID, actorID, authorization.ObjectActivity, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInactiveUser) {
			return apperr.Forbidden(entityActivity, err)
		}
		return apperr.Classify(err, entityActivity)
	}
	return nil
}

func pendingFor(tenantID, assigneeID snowflake.ID) *domain.Activity {
	query := &domain.Activity{TenantID: tenantID, Status: domain.StatusPending}
	if assigneeID != 0 {
		query.AssignedToID = &assigneeID
	}
	return query
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" || len(title) > maxTitleLength {
		return "", apperr.Validation(entityActivity, "title", domain.ErrInvalidTitle)
	}
	return title, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func flatten(items []*domain.Activity) []domain.Activity {
	out := make([]domain.Activity, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}
