package params

import (
	"math/big"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// OddsDecimals is the fixed-point precision of backer odds.
// Odds of 2.5x are encoded as 2.5 * 10^8.
const OddsDecimals = 8

// OddsOne is the fixed-point representation of 1.0x odds.
var OddsOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(OddsDecimals), nil)

// NativeToken is the sentinel token address for native-value deposits.
// Every other token address settles through the external token bridge.
var NativeToken = common.Address{}

// Registry role names resolved at call time.
const (
	RoleBetManager = "BetManager"
	RoleFeeToken   = "FeeToken"
)

type Node struct {
	// DataDir is the root for the pebble database and log files.
	DataDir string `toml:"data_dir"`
	// APIAddr is the listen address for the REST/WebSocket server.
	APIAddr string `toml:"api_addr"`
	// LogFile, when set, tees structured logs to a file next to stdout.
	LogFile string `toml:"log_file"`
	// LogLevel is the minimum level emitted ("debug".."fatal").
	LogLevel string `toml:"log_level"`
}

type Governance struct {
	// Owner may install vault spenders and change registry addresses.
	Owner string `toml:"owner"`
	// FeeToken is the token claim-time fees are denominated in.
	FeeToken string `toml:"fee_token"`
}

type Config struct {
	Node       Node       `toml:"node"`
	Governance Governance `toml:"governance"`
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir:  "data",
			APIAddr:  ":8080",
			LogLevel: "info",
		},
	}
}

// Load reads a TOML config file (optional), merges it over defaults, then
// applies OPENLAY_* environment overrides. A missing file is not an error so
// a bare node can start from defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// .env is optional; environment always wins.
	_ = godotenv.Load()

	if v := os.Getenv("OPENLAY_DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("OPENLAY_API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("OPENLAY_LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("OPENLAY_LOG_LEVEL"); v != "" {
		cfg.Node.LogLevel = v
	}
	if v := os.Getenv("OPENLAY_OWNER"); v != "" {
		cfg.Governance.Owner = v
	}
	if v := os.Getenv("OPENLAY_FEE_TOKEN"); v != "" {
		cfg.Governance.FeeToken = v
	}

	return cfg, nil
}
