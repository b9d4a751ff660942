package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"lan-drop/internal/config"
	"lan-drop/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lan-drop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Flags and config
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"port": cfg.Server.Port,
		"root": cfg.Storage.Root,
	}).Info("Config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Start serving
	handle, err := server.New(*cfg, log).Start(ctx, cfg.Storage.Root)
	if err != nil {
		return err
	}
	if addrs, err := server.LocalAddresses(); err == nil {
		for _, a := range addrs {
			log.WithField("interface", a.Interface).Infof("Reachable at %s://%s:%d", cfg.Server.Scheme, a.Address, handle.Port())
		}
	}

	<-ctx.Done()

	// 4. Shut down
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return handle.Stop(stopCtx)
}
