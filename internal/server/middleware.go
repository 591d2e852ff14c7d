package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estately/internal/apperr"
	obscontext "github.com/smallbiznis/estately/internal/observability/context"
	"github.com/smallbiznis/estately/internal/observability/logger"
	"github.com/smallbiznis/estately/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	HeaderTenant = "X-Tenant-ID"
	HeaderUser   = "X-User-ID"
)

// Identity attaches the caller named by the identity headers. Requests
// without them are anonymous. The headers are trusted as set by the gateway
// in front of this service.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := headerID(c, HeaderTenant)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		userID, err := headerID(c, HeaderUser)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if userID != 0 && tenantID == 0 {
			AbortWithError(c, apperr.Validation("request", HeaderTenant, ErrMissingTenant))
			return
		}

		ctx := tenantctx.WithCaller(c.Request.Context(), tenantctx.Caller{TenantID: tenantID, UserID: userID})
		if tenantID != 0 {
			ctx = obscontext.WithTenantID(ctx, tenantID.String())
		}
		if userID != 0 {
			ctx = obscontext.WithActor(ctx, "user", userID.String())
		} else {
			ctx = obscontext.WithActor(ctx, "anonymous", "")
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func headerID(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(name))
	if raw == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("request", name, ErrInvalidID)
	}
	return id, nil
}

// PublicToolRateLimit throttles anonymous tool calls per client address.
// Authenticated callers pass straight through.
func (s *Server) PublicToolRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if !s.limiter.Enabled() || !tenantctx.FromContext(ctx).Anonymous() {
			c.Next()
			return
		}

		tool := c.Param("name")
		decision := s.limiter.Allow(ctx, c.ClientIP(), tool)
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if !decision.Allowed {
			logger.FromContext(ctx).Warn("public tool rate limit exceeded",
				zap.String("tool", tool),
				zap.Duration("retry_after", decision.RetryAfter),
			)
			retry := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
