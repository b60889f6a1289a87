//go:build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/gowvp/watcher/internal/conf"
	"github.com/gowvp/watcher/internal/data"
)

func wireApp(bc *conf.Bootstrap) (*App, func(), error) {
	panic(wire.Build(data.ProviderSet, ProviderSet))
}
