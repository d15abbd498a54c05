package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/standardex/clob/params"
	"github.com/standardex/clob/pkg/api"
	"github.com/standardex/clob/pkg/clob"
	"github.com/standardex/clob/pkg/clob/access"
	"github.com/standardex/clob/pkg/clob/engine"
	"github.com/standardex/clob/pkg/clob/events"
	"github.com/standardex/clob/pkg/clob/ledger"
	"github.com/standardex/clob/pkg/storage"
	"github.com/standardex/clob/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load .env from current directory

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// ---- Ledger: durable balances ----
	store, err := ledger.NewStore(filepath.Join(cfg.Storage.DataDir, "balances"))
	if err != nil {
		logger.Fatal("open balance store", zap.Error(err))
	}
	led, err := ledger.New(store, logger)
	if err != nil {
		logger.Fatal("init ledger", zap.Error(err))
	}
	defer led.Close()

	// ---- Event bus + trade journal ----
	bus := events.NewBus(cfg.Node.EventBuffer, logger)
	defer bus.Close()

	journal, err := storage.NewTradeJournal(filepath.Join(cfg.Storage.DataDir, "trades"), logger)
	if err != nil {
		logger.Fatal("open trade journal", zap.Error(err))
	}
	defer journal.Close()
	bus.Subscribe(journal)
	logger.Info("trade journal ready", zap.Uint64("trades", journal.Len()))

	// ---- Exchange ----
	if cfg.Node.Admin == (common.Address{}) {
		logger.Fatal("ADMIN_ADDRESS must be configured")
	}
	roles := access.NewRegistry(cfg.Node.Admin)
	x := clob.NewExchange(led, roles, bus, cfg.Node.Escrow, logger)

	if cfg.Fees.Recipient != (common.Address{}) {
		feeCfg := engine.FeeConfig{
			Recipient: cfg.Fees.Recipient,
			RateBps:   cfg.Fees.RateBps,
			FeeToken:  cfg.Fees.FeeToken,
		}
		if err := x.SetFeeConfig(cfg.Node.Admin, feeCfg); err != nil {
			logger.Fatal("set fee config", zap.Error(err))
		}
	}

	// ---- API ----
	srv := api.NewServer(x, logger)
	bus.Subscribe(srv)
	go func() {
		if err := srv.Start(cfg.API.Addr); err != nil {
			logger.Fatal("api server", zap.Error(err))
		}
	}()

	logger.Info("clobd started",
		zap.String("api", cfg.API.Addr),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("admin", cfg.Node.Admin.Hex()),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
