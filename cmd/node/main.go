package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openlay/openlay/params"
	"github.com/openlay/openlay/pkg/api"
	"github.com/openlay/openlay/pkg/engine"
	"github.com/openlay/openlay/pkg/league"
	"github.com/openlay/openlay/pkg/registry"
	"github.com/openlay/openlay/pkg/storage"
	"github.com/openlay/openlay/pkg/util"
	"github.com/openlay/openlay/pkg/vault"
)

// betManagerAddr is the engine's custody identity within the escrow ledger.
// It is an internal account, not a key-holding party.
var betManagerAddr = common.HexToAddress("0x00000000000000000000000000000000004f4c01")

func main() {
	configPath := os.Getenv("OPENLAY_CONFIG")
	if configPath == "" {
		configPath = "openlay.toml"
	}
	cfg, err := params.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logFile := cfg.Node.LogFile
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "node.log")
	}
	logger, err := util.NewLogger(cfg.Node.LogLevel, logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	owner := common.HexToAddress(cfg.Governance.Owner)
	feeToken := common.HexToAddress(cfg.Governance.FeeToken)

	// ---- Persistence ----
	store, err := storage.Open(filepath.Join(cfg.Node.DataDir, "db"))
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer store.Close()

	// ---- Governance wiring ----
	reg := registry.NewGoverned(owner)
	if err := reg.ChangeAddress(owner, params.RoleBetManager, betManagerAddr); err != nil {
		logger.Fatal("registry", zap.Error(err))
	}
	if err := reg.ChangeAddress(owner, params.RoleFeeToken, feeToken); err != nil {
		logger.Fatal("registry", zap.Error(err))
	}

	// ---- Escrow ledger ----
	bridge := vault.NewLedgerBridge()
	v := vault.New(owner, reg, bridge, store, logger.Named("vault"))

	balances, err := store.LoadBalances()
	if err != nil {
		logger.Fatal("load balances", zap.Error(err))
	}
	approvals, err := store.LoadApprovals()
	if err != nil {
		logger.Fatal("load approvals", zap.Error(err))
	}
	spender, err := store.LoadSpender()
	if err != nil {
		logger.Fatal("load spender", zap.Error(err))
	}
	v.Restore(balances, approvals, spender)

	if spender == (common.Address{}) {
		if err := v.AddSpender(owner, betManagerAddr); err != nil {
			logger.Fatal("install spender", zap.Error(err))
		}
	}

	// ---- Fixture catalog ----
	leagues := league.NewCatalog(owner)

	// ---- Fill engine ----
	eng := engine.New(betManagerAddr, v, leagues, reg, util.RealClock{}, store, logger.Named("engine"))
	records, err := store.LoadOrders()
	if err != nil {
		logger.Fatal("load orders", zap.Error(err))
	}
	eng.Restore(records)

	logger.Info("node initialized",
		zap.String("owner", owner.Hex()),
		zap.String("betManager", betManagerAddr.Hex()),
		zap.Int("orders", len(records)))

	// ---- API ----
	server := api.NewServer(eng, v, logger.Named("api"))
	if err := server.Start(cfg.Node.APIAddr); err != nil {
		logger.Fatal("api server", zap.Error(err))
	}
}
