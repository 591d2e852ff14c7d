package query

import (
	"github.com/smallbiznis/estately/internal/query/repository"
	"github.com/smallbiznis/estately/internal/query/service"
	"go.uber.org/fx"
)

var Module = fx.Module("query.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
