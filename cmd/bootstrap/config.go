package bootstrap

import (
	"courtbook/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Options(
	fx.Module("config",
		fx.Provide(config.LoadConfig),
	),
	SubConfigModule,
)

// SubConfigModule derives the section configs that usecases and handlers
// depend on directly. Test harnesses include this next to their own
// config.Config provider.
var SubConfigModule = fx.Module("subconfig",
	fx.Provide(
		func(cfg config.Config) config.AppConfig { return cfg.App },
		func(cfg config.Config) config.PaymentsConfig { return cfg.Payments },
		func(cfg config.Config) config.QueueConfig { return cfg.Queue },
	),
)
