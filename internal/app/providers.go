package app

import (
	"context"

	"optdesk/internal/config"
)

func provideAppBuilder(cfg *config.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}

func provideAppFromBuilder(b *AppBuilder, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}
