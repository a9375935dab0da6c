// Command filament runs the HTTP/1.1 origin server described by an
// nginx-flavored configuration file:
//
//	filament <config-file>
//
// SIGINT and SIGTERM trigger a graceful shutdown. The process exits 0 on a
// normal shutdown and 1 on any initialization failure.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/watt-toolkit/filament/pkg/filament/config"
	"github.com/watt-toolkit/filament/pkg/filament/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <configuration file>\n", os.Args[0])
		return 1
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.WithError(err).Error("configuration load failed")
		return 1
	}
	log.WithFields(logrus.Fields{
		"servers": cfg.ServerCount(),
		"first":   fmt.Sprintf("%s:%d", cfg.Host(), cfg.Port()),
	}).Info("configuration loaded")

	srv, err := server.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("server initialization failed")
		return 1
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.WithField("signal", sig).Info("shutting down")
		srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		log.WithError(err).Error("event loop failed")
		return 1
	}
	return 0
}
