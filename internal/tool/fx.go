package tool

import "go.uber.org/fx"

var Module = fx.Module("tool.dispatcher",
	fx.Provide(New),
)
