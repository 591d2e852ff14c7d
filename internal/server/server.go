package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/config"
	"github.com/smallbiznis/estately/internal/health"
	"github.com/smallbiznis/estately/internal/observability"
	obsmiddleware "github.com/smallbiznis/estately/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/estately/internal/observability/metrics"
	obstracing "github.com/smallbiznis/estately/internal/observability/tracing"
	"github.com/smallbiznis/estately/internal/ratelimit"
	"github.com/smallbiznis/estately/internal/tool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxToolBody = 1 << 20

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	dispatcher *tool.Dispatcher
	limiter    *ratelimit.PublicToolLimiter
	health     *health.Checker
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Dispatcher *tool.Dispatcher
	Limiter    *ratelimit.PublicToolLimiter `optional:"true"`
	Health     *health.Checker              `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		dispatcher: p.Dispatcher,
		limiter:    p.Limiter,
		health:     p.Health,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.Health)

	v1 := s.engine.Group("/v1", Identity())
	v1.GET("/tools", s.ListTools)
	v1.POST("/tools/:name", s.PublicToolRateLimit(), s.CallTool)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, apperr.NotFound("route"))
	})
}

func (s *Server) Health(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	status := s.health.Status()
	if status == health.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": status, "error": s.health.LastError()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.dispatcher.Tools()})
}

// CallTool runs the named tool with the request body as its arguments. The
// body of the response is always a tool.Result; the status code mirrors the
// error kind.
func (s *Server) CallTool(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxToolBody+1))
	if err != nil {
		AbortWithError(c, apperr.Validationf("request", "body", "unreadable body"))
		return
	}
	if len(body) > maxToolBody {
		AbortWithError(c, apperr.Validationf("request", "body", "body exceeds %d bytes", maxToolBody))
		return
	}

	result := s.dispatcher.Call(c.Request.Context(), c.Param("name"), body)
	status := http.StatusOK
	if result.Error != nil {
		status = statusForKind(result.Error.Kind)
	}
	c.JSON(status, result)
}
