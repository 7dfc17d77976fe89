//go:build wireinject
// +build wireinject

package app

import (
	"gridbot/internal/config"
	"gridbot/internal/metrics"

	"github.com/google/wire"
)

func initApp(cfg *config.Config, watcher *config.Watcher) (*App, func(), error) {
	wire.Build(
		provideVenue,
		provideStore,
		provideJournal,
		provideNotifier,
		metrics.New,
		provideBreaker,
		provideBot,
		provideHTTPServer,
		newApp,
	)
	return nil, nil, nil
}
