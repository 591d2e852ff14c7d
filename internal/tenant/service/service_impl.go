package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/tenant/domain"
	"github.com/smallbiznis/estately/internal/tenant/pin"
	"github.com/smallbiznis/estately/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	entityTenant = "tenant"
	entityUser   = "user"

	maxSlugAttempts = 20
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

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
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		repo:  p.Repo,
		authz: p.Authz,
		clock: c,
	}
}

func (s *Service) CreateTenant(ctx context.Context, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	var tenant *domain.Tenant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.createTenant(ctx, tx, req)
		if err != nil {
			return err
		}
		tenant = created
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityTenant)
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("type", string(tenant.Type)),
	)
	return tenant, nil
}

func (s *Service) Onboard(ctx context.Context, req domain.OnboardRequest) (*domain.OnboardResult, error) {
	ownerName := strings.TrimSpace(req.OwnerName)
	if ownerName == "" {
		ownerName = strings.TrimSpace(req.Name)
	}

	var result domain.OnboardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.createTenant(ctx, tx, req.CreateTenantRequest)
		if err != nil {
			return err
		}
		owner, plain, err := s.createUser(ctx, tx, tenant, ownerName, tenant.Mobile, req.OwnerEmail, domain.RoleOwner)
		if err != nil {
			return err
		}
		result = domain.OnboardResult{Tenant: *tenant, Owner: *owner, TemporaryPIN: plain}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityTenant)
	}

	s.log.Info("tenant onboarded",
		zap.String("tenant_id", result.Tenant.ID.String()),
		zap.String("owner_id", result.Owner.ID.String()),
	)
	return &result, nil
}

func (s *Service) createTenant(ctx context.Context, tx *gorm.DB, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation(entityTenant, "name", domain.ErrInvalidName)
	}
	tenantType := domain.TenantType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if tenantType == "" {
		tenantType = domain.TenantTypeFreelancer
	}
	if !tenantType.Valid() {
		return nil, apperr.Validation(entityTenant, "type", domain.ErrInvalidType)
	}
	mobile, err := normalizeMobile(req.Mobile)
	if err != nil {
		return nil, apperr.Validation(entityTenant, "mobile", err)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, apperr.Validation(entityTenant, "email", err)
	}

	existing, err := s.repo.FindTenantByMobile(ctx, tx, mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(entityTenant, "mobile", domain.ErrMobileTaken)
	}

	tenantSlug, err := s.uniqueSlug(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tenant := domain.Tenant{
		ID:                 s.genID.Generate(),
		Name:               name,
		Slug:               tenantSlug,
		Type:               tenantType,
		Mobile:             mobile,
		Email:              email,
		Address:            strings.TrimSpace(req.Address),
		SubscriptionStatus: domain.SubscriptionTrial,
		SubscriptionStart:  &now,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertTenant(ctx, tx, &tenant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, apperr.Conflict(entityTenant, "mobile", domain.ErrMobileTaken)
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "tenant"
	}
	candidate := base
	for attempt := 2; attempt <= maxSlugAttempts; attempt++ {
		exists, err := s.repo.SlugExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return fmt.Sprintf("%s-%s", base, s.genID.Generate().Base36()), nil
}

func (s *Service) GetTenant(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	if id == 0 {
		return nil, apperr.Validation(entityTenant, "id", domain.ErrInvalidTenant)
	}
	tenant, err := s.repo.FindTenantByID(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Classify(err, entityTenant)
	}
	if tenant == nil {
		return nil, apperr.NotFound(entityTenant)
	}
	return tenant, nil
}

func (s *Service) ListActiveTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := s.repo.ListActiveTenants(ctx, s.db)
	if err != nil {
		return nil, apperr.Classify(err, entityTenant)
	}
	tenants := make([]domain.Tenant, 0, len(rows))
	for _, t := range rows {
		tenants = append(tenants, *t)
	}
	return tenants, nil
}

func (s *Service) UpdateProfile(ctx context.Context, tenantID, actorID snowflake.ID, patch domain.ProfilePatch) (*domain.Tenant, error) {
	if err := s.authorize(ctx, tenantID, actorID, authorization.ObjectTenant, authorization.ActionTenantUpdate); err != nil {
		return nil, err
	}

	values := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation(entityTenant, "name", domain.ErrInvalidName)
		}
		values["name"] = name
	}
	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return nil, apperr.Validation(entityTenant, "email", err)
		}
		values["email"] = email
	}
	if patch.Address != nil {
		values["address"] = strings.TrimSpace(*patch.Address)
	}
	if len(values) == 0 {
		return s.GetTenant(ctx, tenantID)
	}
	values["updated_at"] = s.clock.Now()

	affected, err := s.repo.UpdateTenant(ctx, s.db, tenantID, values)
	if err != nil {
		return nil, apperr.Classify(err, entityTenant)
	}
	if affected == 0 {
		return nil, apperr.NotFound(entityTenant)
	}
	return s.GetTenant(ctx, tenantID)
}

func (s *Service) Deactivate(ctx context.Context, tenantID snowflake.ID) error {
	if tenantID == 0 {
		return apperr.Validation(entityTenant, "id", domain.ErrInvalidTenant)
	}
	affected, err := s.repo.UpdateTenant(ctx, s.db, tenantID, map[string]any{
		"is_active":  false,
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		return apperr.Classify(err, entityTenant)
	}
	if affected == 0 {
		return apperr.NotFound(entityTenant)
	}
	s.log.Info("tenant deactivated", zap.String("tenant_id", tenantID.String()))
	return nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.CreatedUser, error) {
	if req.TenantID == 0 {
		return nil, apperr.Validation(entityUser, "tenant_id", domain.ErrInvalidTenant)
	}
	if err := s.authorize(ctx, req.TenantID, req.ActorID, authorization.ObjectUser, authorization.ActionUserManage); err != nil {
		return nil, err
	}

	var created domain.CreatedUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.repo.FindTenantByID(ctx, tx, req.TenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return apperr.NotFound(entityTenant)
		}
		if !tenant.IsActive {
			return apperr.Forbidden(entityTenant, domain.ErrTenantInactive)
		}
		user, plain, err := s.createUser(ctx, tx, tenant, req.Name, req.Mobile, req.Email, req.Role)
		if err != nil {
			return err
		}
		created = domain.CreatedUser{User: *user, TemporaryPIN: plain}
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err, entityUser)
	}

	s.log.Info("user created",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("user_id", created.User.ID.String()),
		zap.String("role", string(created.User.Role)),
	)
	return &created, nil
}

func (s *Service) createUser(ctx context.Context, tx *gorm.DB, tenant *domain.Tenant, name, mobile, email string, role domain.Role) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", apperr.Validation(entityUser, "name", domain.ErrInvalidName)
	}
	normalizedMobile, err := normalizeMobile(mobile)
	if err != nil {
		return nil, "", apperr.Validation(entityUser, "mobile", err)
	}
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return nil, "", apperr.Validation(entityUser, "email", err)
	}
	role = domain.Role(strings.ToLower(strings.TrimSpace(string(role))))
	if !role.Valid() {
		return nil, "", apperr.Validation(entityUser, "role", domain.ErrInvalidRole)
	}

	existing, err := s.repo.FindUserByMobile(ctx, tx, normalizedMobile)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", apperr.Validation(entityUser, "mobile", domain.ErrMobileTaken)
	}

	plain, hash, err := issuePIN()
	if err != nil {
		return nil, "", err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:               s.genID.Generate(),
		TenantID:         tenant.ID,
		Name:             name,
		Mobile:           normalizedMobile,
		Email:            normalizedEmail,
		Role:             role,
		Status:           domain.UserActive,
		PinHash:          hash,
		PinResetRequired: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertUser(ctx, tx, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, "", apperr.Validation(entityUser, "mobile", domain.ErrMobileTaken)
		}
		return nil, "", err
	}
	return &user, plain, nil
}

func (s *Service) GetUser(ctx context.Context, tenantID, userID snowflake.ID) (*domain.User, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityUser, "tenant_id", domain.ErrInvalidTenant)
	}
	user, err := s.repo.FindUserByID(ctx, s.db, tenantID, userID)
	if err != nil {
		return nil, apperr.Classify(err, entityUser)
	}
	if user == nil {
		return nil, apperr.NotFound(entityUser)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, tenantID snowflake.ID, filter domain.UserFilter) ([]domain.User, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityUser, "tenant_id", domain.ErrInvalidTenant)
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, apperr.Validation(entityUser, "role", domain.ErrInvalidRole)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation(entityUser, "status", domain.ErrInvalidStatus)
	}

	items, err := s.repo.ListUsers(ctx, s.db, tenantID, filter)
	if err != nil {
		return nil, apperr.Classify(err, entityUser)
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) SetUserStatus(ctx context.Context, tenantID, actorID, userID snowflake.ID, status domain.UserStatus) (*domain.User, error) {
	if !status.Valid() {
		return nil, apperr.Validation(entityUser, "status", domain.ErrInvalidStatus)
	}
	return s.updateUser(ctx, tenantID, actorID, userID, map[string]any{"status": status})
}

func (s *Service) SetUserRole(ctx context.Context, tenantID, actorID, userID snowflake.ID, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation(entityUser, "role", domain.ErrInvalidRole)
	}
	return s.updateUser(ctx, tenantID, actorID, userID, map[string]any{"role": role})
}

func (s *Service) ResetPIN(ctx context.Context, tenantID, actorID, userID snowflake.ID) (string, error) {
	plain, hash, err := issuePIN()
	if err != nil {
		return "", apperr.Classify(err, entityUser)
	}
	if _, err := s.updateUser(ctx, tenantID, actorID, userID, map[string]any{
		"pin_hash":           hash,
		"pin_reset_required": true,
	}); err != nil {
		return "", err
	}
	s.log.Info("user pin reset",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", userID.String()),
	)
	return plain, nil
}

func (s *Service) updateUser(ctx context.Context, tenantID, actorID, userID snowflake.ID, values map[string]any) (*domain.User, error) {
	if tenantID == 0 {
		return nil, apperr.Validation(entityUser, "tenant_id", domain.ErrInvalidTenant)
	}
	if err := s.authorize(ctx, tenantID, actorID, authorization.ObjectUser, authorization.ActionUserManage); err != nil {
		return nil, err
	}
	values["updated_at"] = s.clock.Now()

	affected, err := s.repo.UpdateUser(ctx, s.db, tenantID, userID, values)
	if err != nil {
		return nil, apperr.Classify(err, entityUser)
	}
	if affected == 0 {
		return nil, apperr.NotFound(entityUser)
	}
	return s.GetUser(ctx, tenantID, userID)
}

func (s *Service) Authenticate(ctx context.Context, mobile, value string) (*domain.User, error) {
	normalized, err := normalizeMobile(mobile)
	if err != nil {
		return nil, apperr.Validation(entityUser, "mobile", err)
	}
	user, err := s.repo.FindUserByMobile(ctx, s.db, normalized)
	if err != nil {
		return nil, apperr.Classify(err, entityUser)
	}
	if user == nil || user.PinHash == "" || !pin.Verify(value, user.PinHash) {
		return nil, apperr.Validation(entityUser, "pin", domain.ErrInvalidCredentials)
	}
	if user.Status != domain.UserActive {
		return nil, apperr.Forbidden(entityUser, domain.ErrInvalidStatus)
	}
	return user, nil
}

func (s *Service) ChangePIN(ctx context.Context, tenantID, userID snowflake.ID, current, next string) error {
	if !pin.Valid(next) {
		return apperr.Validation(entityUser, "pin", domain.ErrInvalidPIN)
	}
	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if user.PinHash == "" || !pin.Verify(current, user.PinHash) {
		return apperr.Validation(entityUser, "pin", domain.ErrInvalidCredentials)
	}
	hash, err := pin.Hash(next)
	if err != nil {
		return apperr.Classify(err, entityUser)
	}
	if _, err := s.repo.UpdateUser(ctx, s.db, tenantID, userID, map[string]any{
		"pin_hash":           hash,
		"pin_reset_required": false,
		"updated_at":         s.clock.Now(),
	}); err != nil {
		return apperr.Classify(err, entityUser)
	}
	return nil
}

// authorize skips the policy check for internal callers (actorID 0).
func (s *Service) authorize(ctx context.Context, tenantID, actorID snowflake.ID, object, action string) error {
	if actorID == 0 {
		return nil
	}
	if err := s.authz.Authorize(ctx, tenantID, actorID, object, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInactiveUser) {
			return apperr.Forbidden(object, err)
		}
		return apperr.Classify(err, object)
	}
	return nil
}

func issuePIN() (string, string, error) {
	plain, err := pin.Generate()
	if err != nil {
		return "", "", err
	}
	hash, err := pin.Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}

func normalizeMobile(value string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(value))
	if !mobilePattern.MatchString(cleaned) {
		return "", domain.ErrInvalidMobile
	}
	return cleaned, nil
}

func normalizeEmail(value string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(value))
	if email == "" {
		return "", nil
	}
	if !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
