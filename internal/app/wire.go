//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"optdesk/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(provideAppBuilder, provideAppFromBuilder)
	return nil, nil
}
