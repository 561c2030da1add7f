package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/amsen20/argos/internal/config"
	"github.com/amsen20/argos/internal/connector"
	"github.com/amsen20/argos/internal/gui"
	"github.com/amsen20/argos/internal/scheduler"
	"github.com/amsen20/argos/internal/store"
	"github.com/amsen20/argos/logging"
	"github.com/amsen20/argos/sim"
	"github.com/amsen20/argos/statistics"
)

var log = logging.Get()

func main() {
	configFilePath := flag.String("config_file", "", "Path to config file")
	mode := flag.String("mode", "sim", "sim compares the algorithms, serve runs one of them behind the gui")
	flag.Parse()

	conf, err := config.Load(*configFilePath)
	if err != nil {
		log.Err(err).Msgf("could not load config")
		os.Exit(1)
	}
	config.SchedulerGeneralConfig = conf

	if conf.LogLevel != "" && !logging.SetLevel(conf.LogLevel) {
		log.Warn().Msgf("log level %q is not recognized", conf.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *mode {
	case "sim":
		if _, err := sim.Start(ctx, conf); err != nil {
			log.Err(err).Msg("simulation failed")
			os.Exit(1)
		}
	case "serve":
		if err := serve(ctx, conf); err != nil {
			log.Err(err).Msg("scheduler failed")
			os.Exit(1)
		}
	default:
		log.Error().Msgf("mode %q is not recognized", *mode)
		os.Exit(1)
	}
}

func serve(ctx context.Context, conf config.GeneralConfig) error {
	trace := connector.NewTraceConnector(
		conf.Dataset,
		conf.MobilityTrace,
		conf.Steps,
		time.Duration(conf.StepPeriodDuration)*time.Millisecond,
	)

	var c connector.Connector
	switch conf.ConnectorKind {
	case "trace":
		c = trace
	case "kubernetes":
		kc, err := connector.NewKubeConnector(conf.KubeConfig, trace)
		if err != nil {
			log.Err(err).Msg("could not init the connector")
			return err
		}
		c = kc
	}

	decisionStore, err := store.New(conf.StoreKind, conf.StorePath)
	if err != nil {
		return err
	}
	defer decisionStore.Close()

	sched, err := scheduler.New(c, conf.Algorithm, conf.SLAGated, decisionStore, statistics.NewCollector())
	if err != nil {
		log.Err(err).Msg("could not initiate scheduler")
		return err
	}

	if err := sched.Start(); err != nil {
		log.Err(err).Msg("could not start scheduler")
		return err
	}

	schedulerBridge, err := sched.Run(ctx)
	if err != nil {
		log.Err(err).Msg("could not run scheduler")
		return err
	}

	go func() {
		if err := <-schedulerBridge.Done; err != nil {
			log.Err(err).Msg("mobility replay stopped")
			return
		}
		log.Info().Msg(schedulerBridge.Collector.Display())
	}()

	return gui.SetUp(schedulerBridge).Run(ctx, conf.GUIAddress)
}
