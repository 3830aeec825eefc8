package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChronosX88/newsd/internal/common"
	"github.com/ChronosX88/newsd/internal/config"
	"github.com/ChronosX88/newsd/internal/logging"
	"github.com/ChronosX88/newsd/internal/server"
)

func main() {

	configPath := flag.String("config", "", "Path to config (defaults are used when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.ParseConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	log.Infof("Starting %s...", common.ServerName)
	ns, err := server.NewNewsServer(cfg, log)
	if err != nil {
		log.Fatal(err)
	}

	if err := ns.Start(); err != nil {
		log.Fatal(err)
	}
	log.Infof("%s has been successfully started!", common.ServerName)
	log.Infof("Version: %s", common.ServerVersion)
	log.Infof("Storage backend: %s", cfg.BackendType)

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", ns.Metrics().Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics endpoint failed: %v", err)
			}
		}()
		log.Infof("Serving metrics on %s/metrics", cfg.MetricsAddress)
	}

	for range c {
		log.Infof("Stopping %s...", common.ServerName)
		if metricsServer != nil {
			metricsServer.Close()
		}
		ns.Stop()
		break
	}
}
