package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// QueryConfig tunes read paths and the anonymous rate limit. It is reloaded
// from query.yml without a restart.
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	NearbyRadiusKm  float64
	NearbyLimit     int
	PublicRate      float64
	PublicBurst     int
}

func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		NearbyRadiusKm:  10,
		NearbyLimit:     50,
		PublicRate:      5,
		PublicBurst:     30,
	}
}

type QueryConfigHolder struct {
	current atomic.Value // holds QueryConfig
}

// NewStaticQueryConfigHolder pins a fixed config, used by tests and tools.
func NewStaticQueryConfigHolder(cfg QueryConfig) *QueryConfigHolder {
	holder := &QueryConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewQueryConfigHolder(log *zap.Logger) (*QueryConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("query.config")

	v := viper.New()

	v.SetConfigName("query")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/estately")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESTATELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultQueryConfig()
	v.SetDefault("query.defaultPageSize", defaults.DefaultPageSize)
	v.SetDefault("query.maxPageSize", defaults.MaxPageSize)
	v.SetDefault("query.nearbyRadiusKm", defaults.NearbyRadiusKm)
	v.SetDefault("query.nearbyLimit", defaults.NearbyLimit)
	v.SetDefault("query.publicRate", defaults.PublicRate)
	v.SetDefault("query.publicBurst", defaults.PublicBurst)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg := readQueryConfig(v)
	if err := validateQueryConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticQueryConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readQueryConfig(v)
		if err := validateQueryConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// readQueryConfig reads key by key so defaults and env overrides merge with a
// partial file.
func readQueryConfig(v *viper.Viper) QueryConfig {
	return QueryConfig{
		DefaultPageSize: v.GetInt("query.defaultPageSize"),
		MaxPageSize:     v.GetInt("query.maxPageSize"),
		NearbyRadiusKm:  v.GetFloat64("query.nearbyRadiusKm"),
		NearbyLimit:     v.GetInt("query.nearbyLimit"),
		PublicRate:      v.GetFloat64("query.publicRate"),
		PublicBurst:     v.GetInt("query.publicBurst"),
	}
}

func (h *QueryConfigHolder) Get() QueryConfig {
	if h == nil {
		return DefaultQueryConfig()
	}
	cfg, ok := h.current.Load().(QueryConfig)
	if !ok {
		return DefaultQueryConfig()
	}
	return cfg
}

func validateQueryConfig(cfg QueryConfig) error {
	if cfg.DefaultPageSize <= 0 || cfg.MaxPageSize <= 0 {
		return errors.New("query page sizes must be positive")
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		return errors.New("query.defaultPageSize cannot exceed query.maxPageSize")
	}
	if cfg.NearbyRadiusKm <= 0 || cfg.NearbyLimit <= 0 {
		return errors.New("query nearby settings must be positive")
	}
	if cfg.PublicRate <= 0 || cfg.PublicBurst <= 0 {
		return errors.New("query public rate limit must be positive")
	}
	return nil
}

// PageSize clamps a requested page size to the configured bounds.
func (c QueryConfig) PageSize(requested int) int {
	if requested <= 0 {
		return c.DefaultPageSize
	}
	if requested > c.MaxPageSize {
		return c.MaxPageSize
	}
	return requested
}
