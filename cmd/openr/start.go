package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/client"
	"github.com/robertprast/openr/historian"
	"github.com/robertprast/openr/server"
	"github.com/robertprast/openr/shared"
	"github.com/robertprast/openr/util"
)

var startCommand = command{
	name:        "start",
	description: "start a store process from a config file",
	run:         runStart,
}

func runStart(args []string) error {
	flagSet := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := flagSet.String("conf", "", "path to the YAML config file")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *configFile == "" {
		return fmt.Errorf("-conf is required")
	}

	var config shared.YAMLServerConfig

	if err := config.LoadFromFile(*configFile); err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	if config.NodeID == "" {
		config.NodeID = util.NewNodeID()
	}

	registry := prometheus.NewRegistry()
	counters := openr.NewPrometheusCounters(registry)

	dialer := openr.Dialer(client.NewHTTPDialer(time.Duration(config.PeerDialTimeMS) * time.Millisecond))
	store := openr.NewStore(config.NodeID, dialer, counters)

	store.Run()
	defer store.Stop()

	for _, area := range config.Areas {
		specs := make(map[string]openr.PeerSpec, len(area.Peers))

		for _, peer := range area.Peers {
			specs[peer.Name] = openr.PeerSpec{Host: peer.Host, Port: peer.Port}
		}

		if len(specs) > 0 {
			store.AddPeers(area.Name, specs)
		}
	}

	var hist *historian.Historian

	if config.HistoryDir != "" {
		var err error

		hist, err = historian.Open(config.HistoryDir)

		if err != nil {
			return fmt.Errorf("could not open history log: %w", err)
		}

		go hist.Run(store)
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	srv := server.New(fmt.Sprintf(":%d", config.Port), store, metricsHandler)

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
	}

	srv.Close()

	if hist != nil {
		hist.Close()
	}

	return nil
}
