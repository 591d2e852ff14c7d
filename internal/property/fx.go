package property

import (
	"github.com/smallbiznis/estately/internal/property/repository"
	"github.com/smallbiznis/estately/internal/property/service"
	"go.uber.org/fx"
)

var Module = fx.Module("property.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
