package main

import (
	"context"
	goflag "flag"
	"time"

	"github.com/chaosgomoku/solive/pkg/config"
	"github.com/chaosgomoku/solive/pkg/coordinator"
	"github.com/chaosgomoku/solive/pkg/engine/pion"
	"github.com/chaosgomoku/solive/pkg/logger"
	"github.com/chaosgomoku/solive/pkg/monitoring"
	"github.com/chaosgomoku/solive/pkg/os"
	"github.com/chaosgomoku/solive/pkg/persistence"
	"github.com/chaosgomoku/solive/pkg/service"
	flag "github.com/spf13/pflag"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf := config.NewConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Debug, "s", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	lock, err := os.NewFileLock(conf.Storage.Lock)
	if err != nil {
		log.Fatal().Err(err).Msg("lock")
	}
	if err = lock.TryLock(); err != nil {
		log.Fatal().Err(err).Str("path", lock.Path()).Msg("another instance is running")
	}
	defer func() { _ = lock.Unlock() }()

	var store coordinator.Store
	if conf.Storage.IsEnabled() {
		db, err := persistence.Open(conf.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("storage")
		}
		defer func() { _ = db.Close() }()
		log.Info().Msgf("storage: %v (sqlite %v)", conf.Storage.Path, persistence.Version())
		store = db
	}

	e, err := pion.New(conf.Webrtc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("media engine")
	}
	defer func() { _ = e.Close() }()

	metrics := monitoring.NewMetrics()
	services := service.Group{}
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, metrics, log)
		if err != nil {
			log.Fatal().Err(err).Msg("monitoring")
		}
		services.Add(mon)
	}
	c, err := coordinator.New(conf, e, store, metrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator")
	}
	services.Add(c)
	services.Start()

	<-os.ExpectTermination()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
