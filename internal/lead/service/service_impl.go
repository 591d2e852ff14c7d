package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/config"
	"github.com/smallbiznis/estately/internal/lead/domain"
	"github.com/smallbiznis/estately/internal/observability/metrics"
	propertydomain "github.com/smallbiznis/estately/internal/property/domain"
	tenantdomain "github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/smallbiznis/estately/pkg/db/option"
	"github.com/smallbiznis/estately/pkg/db/pagination"
	"github.com/smallbiznis/estately/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityLead = "lead"

	maxBulkSize = 500
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Properties propertydomain.Service
	Users      tenantdomain.Service
	Authz      authorization.Service
	Query      *config.QueryConfigHolder `optional:"true"`
	Metrics    *metrics.Metrics          `optional:"true"`
	Clock      clock.Clock               `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	properties propertydomain.Service
	users      tenantdomain.Service
	authz      authorization.Service
	query      *config.QueryConfigHolder
	metrics    *metrics.Metrics
	clock      clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("lead.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		properties: p.Properties,
		users:      p.Users,
		authz:      p.Authz,
		query:      p.Query,
		metrics:    p.Metrics,
		clock:      c,
	}
}

func (s *Service) Create(ctx context.Context, tenantID, actorID snowflake.ID, contact domain.Contact, source domain.Source) (*domain.Lead, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityLead, "tenant_id", domain.ErrInvalidTenant)
	}
	lead, err := s.build(tenantID, actorID, contact, source)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionLeadCreate); err != nil {
		return nil, err
	}

	err = rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		if err := s.linkProperty(ctx, tx, lead); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, lead)
	})
	if err != nil {
		return nil, apperr.Classify(err, entityLead)
	}
	return lead, nil
}

// BulkCreate imports every contact or none.
func (s *Service) BulkCreate(ctx context.Context, tenantID, actorID snowflake.ID, contacts []domain.Contact, source domain.Source) ([]domain.Lead, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityLead, "tenant_id", domain.ErrInvalidTenant)
	}
	if len(contacts) == 0 {
		return nil, apperr.Validation(entityLead, "items", domain.ErrEmptyBatch)
	}
	if len(contacts) > maxBulkSize {
		return nil, apperr.Validation(entityLead, "items", domain.ErrBatchTooLarge)
	}

	leads := make([]*domain.Lead, 0, len(contacts))
	for i, contact := range contacts {
		lead, err := s.build(tenantID, actorID, contact, source)
		if err != nil {
			return nil, atIndex(err, i)
		}
		leads = append(leads, lead)
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionLeadImport); err != nil {
		return nil, err
	}

	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		for i, lead := range leads {
			if err := s.linkProperty(ctx, tx, lead); err != nil {
				return atIndex(err, i)
			}
		}
		return s.repo.InsertBatch(ctx, tx, leads)
	})
	if err != nil {
		return nil, apperr.Classify(err, entityLead)
	}

	out := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		out = append(out, *lead)
	}
	return out, nil
}

// Assign hands the lead to userID, who must be an active user of tenantID.
func (s *Service) Assign(ctx context.Context, leadID, tenantID, actorID, userID snowflake.ID) (*domain.Lead, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityLead, "tenant_id", domain.ErrInvalidTenant)
	}
	if userID == 0 {
		return nil, apperr.Validation(entityLead, "assigned_to_id", domain.ErrInvalidAssignee)
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionLeadAssign); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, tenantID, userID)
	switch {
	case apperr.IsKind(err, apperr.KindNotFound):
		return nil, apperr.Validation(entityLead, "assigned_to_id", domain.ErrInvalidAssignee)
	case err != nil:
		return nil, err
	case user.TenantID != tenantID || user.Status != tenantdomain.UserActive:
		return nil, apperr.Validation(entityLead, "assigned_to_id", domain.ErrInvalidAssignee)
	}

	lead, err := s.update(ctx, tenantID, leadID, map[string]any{
		"assigned_to_id": userID,
		"updated_at":     s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeadAssigned(ctx)
	s.log.Debug("lead assigned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("lead_id", leadID.String()),
		zap.String("user_id", userID.String()),
	)
	return lead, nil
}

func (s *Service) ListByAssignee(ctx context.Context, userID, tenantID snowflake.ID, page pagination.Pagination) (*domain.ListResult, error) {
	if userID == 0 {
		return nil, apperr.Validation(entityLead, "assigned_to_id", domain.ErrInvalidAssignee)
	}
	return s.List(ctx, tenantID, domain.ListFilter{AssignedToID: &userID, Pagination: page})
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, filter domain.ListFilter) (*domain.ListResult, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityLead, "tenant_id", domain.ErrInvalidTenant)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation(entityLead, "status", domain.ErrInvalidStatus)
	}
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, apperr.Validation(entityLead, "source", domain.ErrInvalidSource)
	}
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, apperr.Validation(entityLead, "page_token", domain.ErrInvalidCursor)
		}
		if _, err := cursor.Time(); err != nil {
			return nil, apperr.Validation(entityLead, "page_token", domain.ErrInvalidCursor)
		}
	}

	size := s.query.Get().PageSize(filter.PageSize)
	page := pagination.Pagination{PageToken: filter.PageToken, PageSize: size}

	items, err := s.repo.List(ctx, s.db, tenantID, filter, option.ApplyPagination(page))
	if err != nil {
		return nil, apperr.Classify(err, entityLead)
	}

	pageInfo := pagination.BuildCursorPageInfo(items, size, func(lead *domain.Lead) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        lead.ID.String(),
			CreatedAt: lead.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > size {
		items = items[:size]
	}

	result := &domain.ListResult{Items: make([]domain.Lead, 0, len(items)), PageInfo: *pageInfo}
	for _, item := range items {
		result.Items = append(result.Items, *item)
	}
	return result, nil
}

func (s *Service) UpdateStatus(ctx context.Context, leadID, tenantID, actorID snowflake.ID, status domain.Status) (*domain.Lead, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityLead, "tenant_id", domain.ErrInvalidTenant)
	}
	status = domain.Status(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, apperr.Validation(entityLead, "status", domain.ErrInvalidStatus)
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ActionLeadUpdate); err != nil {
		return nil, err
	}
	return s.update(ctx, tenantID, leadID, map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	})
}

func (s *Service) Get(ctx context.Context, leadID, tenantID snowflake.ID) (*domain.Lead, error) {
	if tenantID == 0 {
		return nil, apperr.NotFound(entityLead)
	}
	lead, err := s.repo.FindByID(ctx, s.db, tenantID, leadID)
	if err != nil {
		return nil, apperr.Classify(err, entityLead)
	}
	if lead == nil {
		return nil, apperr.NotFound(entityLead)
	}
	return lead, nil
}

func (s *Service) update(ctx context.Context, tenantID, leadID snowflake.ID, values map[string]any) (*domain.Lead, error) {
	var lead *domain.Lead
	err := rls.Transaction(ctx, s.db, tenantID, func(tx *gorm.DB) error {
		affected, err := s.repo.Update(ctx, tx, tenantID, leadID, values)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound(entityLead)
		}
		lead, err = s.repo.FindByID(ctx, tx, tenantID, leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return apperr.NotFound(entityLead)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityLead)
	}
	return lead, nil
}

// linkProperty counts the inquiry against the listing, which must belong to
// the lead's tenant.
func (s *Service) linkProperty(ctx context.Context, tx *gorm.DB, lead *domain.Lead) error {
	if lead.PropertyID == nil {
		return nil
	}
	err := s.properties.RecordInquiry(ctx, tx, lead.TenantID, *lead.PropertyID)
	if errors.Is(err, propertydomain.ErrUnknownProperty) {
		return apperr.Validation(entityLead, "property_id", domain.ErrInvalidProperty)
	}
	return err
}

func (s *Service) build(tenantID, actorID snowflake.ID, contact domain.Contact, source domain.Source) (*domain.Lead, error) {
	name := strings.TrimSpace(contact.Name)
	if name == "" {
		return nil, apperr.Validation(entityLead, "name", domain.ErrInvalidName)
	}
	mobile := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(contact.Mobile))
	if !mobilePattern.MatchString(mobile) {
		return nil, apperr.Validation(entityLead, "mobile", domain.ErrInvalidMobile)
	}
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	if email != "" && !strings.Contains(email, "@") {
		return nil, apperr.Validation(entityLead, "email", domain.ErrInvalidEmail)
	}
	source = domain.Source(strings.ToLower(strings.TrimSpace(string(source))))
	if source == "" {
		source = domain.SourceOther
	}
	if !source.Valid() {
		return nil, apperr.Validation(entityLead, "source", domain.ErrInvalidSource)
	}
	if err := validateBudget(contact.BudgetMin, contact.BudgetMax); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &domain.Lead{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		Name:       name,
		Mobile:     mobile,
		Email:      email,
		Source:     source,
		Status:     domain.StatusNew,
		Notes:      strings.TrimSpace(contact.Notes),
		BudgetMin:  db.NewMoney(contact.BudgetMin),
		BudgetMax:  db.NewMoney(contact.BudgetMax),
		PropertyID: contact.PropertyID,
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// authorize skips the policy check for internal callers (actorID 0).
func (s *Service) authorize(ctx context.Context, tenantID, actorID snowflake.ID, action string) error {
	if actorID == 0 {
		return nil
	}
	if err := s.authz.Authorize(ctx, tenantID, actorID, authorization.ObjectLead, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInactiveUser) {
			return apperr.Forbidden(entityLead, err)
		}
		return apperr.Classify(err, entityLead)
	}
	return nil
}

func validateBudget(low, high *decimal.Decimal) error {
	if low != nil && low.IsNegative() {
		return apperr.Validation(entityLead, "budget_min", domain.ErrInvalidBudget)
	}
	if high != nil && high.IsNegative() {
		return apperr.Validation(entityLead, "budget_max", domain.ErrInvalidBudget)
	}
	if low != nil && high != nil && low.GreaterThan(*high) {
		return apperr.Validation(entityLead, "budget_max", domain.ErrInvalidBudget)
	}
	return nil
}

func atIndex(err error, index int) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return err
	}
	tagged := *appErr
	if tagged.Field != "" {
		tagged.Field = fmt.Sprintf("items[%d].%s", index, tagged.Field)
	} else {
		tagged.Field = fmt.Sprintf("items[%d]", index)
	}
	return &tagged
}
