package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize must run outside any open write transaction: it reads the users
// table and may persist a role link.
func (s *ServiceImpl) Authorize(ctx context.Context, tenantID, userID snowflake.ID, object, action string) error {
	if userID == 0 {
		return ErrInvalidActor
	}
	if tenantID == 0 {
		return ErrInvalidTenant
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := s.roleForUser(ctx, tenantID, userID)
	if err != nil {
		s.log.Debug("authorization denied",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", userID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	domain := fmt.Sprintf("tenant:%s", tenantID.String())
	roleName := fmt.Sprintf("role:%s", role)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", userID.String()),
			zap.String("role", role),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) roleForUser(ctx context.Context, tenantID, userID snowflake.ID) (string, error) {
	var row struct {
		Role   string `gorm:"column:role"`
		Status string `gorm:"column:status"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, status
		 FROM users
		 WHERE tenant_id = ? AND id = ?
		 LIMIT 1`,
		tenantID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.ToLower(strings.TrimSpace(row.Role))
	if role == "" {
		return "", ErrForbidden
	}
	if !strings.EqualFold(strings.TrimSpace(row.Status), "active") {
		return "", ErrInactiveUser
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

var rolePolicies = map[string][]string{
	"owner": {
		ActionPropertyCreate, ActionPropertyUpdate, ActionPropertyPublish, ActionPropertyDelete, ActionPropertyImport,
		ActionLeadCreate, ActionLeadUpdate, ActionLeadAssign, ActionLeadImport,
		ActionActivityCreate, ActionActivityUpdate, ActionActivityDelete,
		ActionUserManage, ActionLookupManage, ActionTenantUpdate,
	},
	"manager": {
		ActionPropertyCreate, ActionPropertyUpdate, ActionPropertyPublish, ActionPropertyDelete, ActionPropertyImport,
		ActionLeadCreate, ActionLeadUpdate, ActionLeadAssign, ActionLeadImport,
		ActionActivityCreate, ActionActivityUpdate, ActionActivityDelete,
		ActionUserManage, ActionLookupManage,
	},
	"sales_agent": {
		ActionPropertyCreate, ActionPropertyUpdate,
		ActionLeadCreate, ActionLeadUpdate, ActionLeadAssign,
		ActionActivityCreate, ActionActivityUpdate,
	},
	"marketer": {
		ActionPropertyCreate, ActionPropertyUpdate, ActionPropertyPublish,
		ActionLeadCreate,
		ActionActivityCreate, ActionActivityUpdate,
	},
	"admin_assistant": {
		ActionPropertyCreate, ActionPropertyUpdate,
		ActionLeadCreate, ActionLeadUpdate,
		ActionActivityCreate, ActionActivityUpdate,
	},
	"employee": {
		ActionLeadUpdate,
		ActionActivityCreate, ActionActivityUpdate,
	},
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for role, actions := range rolePolicies {
		for _, action := range actions {
			object, _, _ := strings.Cut(action, ".")
			if _, err := enforcer.AddPolicy("role:"+role, object, action); err != nil {
				return err
			}
		}
	}
	return nil
}
