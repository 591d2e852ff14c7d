package lookup

import (
	"github.com/smallbiznis/estately/internal/lookup/repository"
	"github.com/smallbiznis/estately/internal/lookup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lookup.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
