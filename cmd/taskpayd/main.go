package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taskpaylabs/taskpayd/internal/config"
	"github.com/taskpaylabs/taskpayd/internal/core/application"
	"github.com/taskpaylabs/taskpayd/internal/infrastructure/db"
	"github.com/taskpaylabs/taskpayd/internal/infrastructure/ledger/ethereum"
	"github.com/taskpaylabs/taskpayd/internal/infrastructure/signer/local"
	"github.com/taskpaylabs/taskpayd/internal/interface/web"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))
	log.WithFields(log.Fields{"version": version, "commit": commit}).Info("starting taskpayd...")

	dbSvc, err := db.NewService(db.ServiceConfig{
		DbType:   cfg.DbType,
		DbConfig: dbConfig(cfg),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	contract := cfg.EscrowContractAddress()

	ledgerSvc, err := ethereum.NewService(
		cfg.LedgerRPCURL, contract, time.Duration(cfg.LedgerTimeout)*time.Second,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to escrow ledger")
	}

	signerSvc, err := local.NewService(cfg.AdminPrivateKey, contract)
	if err != nil {
		log.WithError(err).Fatal("failed to init admin signer")
	}
	log.Infof("admin signer address: %s", signerSvc.Address())

	taskSvc := application.NewTaskService(dbSvc, ledgerSvc, signerSvc)
	responseSvc := application.NewResponseService(dbSvc)

	webSvc := web.NewService(cfg.HTTPPort, taskSvc, responseSvc)
	webSvc.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down...")
	webSvc.Stop()
	ledgerSvc.Close()
	dbSvc.Close()
	log.Info("service stopped")
}

func dbConfig(cfg *config.Config) []any {
	if cfg.DbType == "badger" {
		return []any{cfg.Datadir, log.New()}
	}
	return []any{cfg.Datadir}
}
