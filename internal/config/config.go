package config

import (
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config carries everything daffyd needs at startup. Values come from the
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	ListenAddr   string
	DatabasePath string

	LogFile    string
	ErrorFile  string
	LogLevel   string
	LogConsole bool

	// Raffle policy.
	ActivationWindow   time.Duration
	MaxTicketPrice     *big.Int
	MaxCreatorSharePct uint8
	PlatformFeePct     uint8
	PlatformAccount    common.Address
	OperatorAccount    common.Address

	// Chain adapters. Backend "memory" keeps assets and payments in-process.
	AssetBackend string
	ChainRPCURL  string
	OperatorKey  string

	// Randomness oracle.
	OracleWords            uint32
	OracleConfirmations    uint16
	OracleCallbackGasLimit uint32
	OracleDelay            time.Duration
}

const (
	defaultListenAddr       = ":8080"
	defaultDatabasePath     = "daffy.db"
	defaultActivationWindow = 24 * time.Hour
	defaultMaxSharePct      = 80
	defaultPlatformFeePct   = 3
	defaultOracleWords      = 1
	defaultOracleDelay      = 3 * time.Second
)

// 100 ether in wei, the cap on a single ticket's price.
var defaultMaxTicketPrice, _ = new(big.Int).SetString("100000000000000000000", 10)

func Load() (*Config, error) {

	if err := godotenv.Load(); err != nil {
		// A .env file is optional, plain environment variables still apply.
	}

	cfg := &Config{
		ListenAddr:             getEnv("DAFFY_LISTEN_ADDR", defaultListenAddr),
		DatabasePath:           getEnv("DAFFY_DATABASE_PATH", defaultDatabasePath),
		LogFile:                os.Getenv("DAFFY_LOG_FILE"),
		ErrorFile:              os.Getenv("DAFFY_ERROR_FILE"),
		LogLevel:               getEnv("DAFFY_LOG_LEVEL", "info"),
		LogConsole:             getEnv("DAFFY_LOG_CONSOLE", "true") == "true",
		AssetBackend:           getEnv("DAFFY_ASSET_BACKEND", "memory"),
		ChainRPCURL:            os.Getenv("DAFFY_CHAIN_RPC_URL"),
		OperatorKey:            os.Getenv("DAFFY_OPERATOR_KEY"),
		ActivationWindow:       defaultActivationWindow,
		MaxTicketPrice:         defaultMaxTicketPrice,
		MaxCreatorSharePct:     defaultMaxSharePct,
		PlatformFeePct:         defaultPlatformFeePct,
		OracleWords:            defaultOracleWords,
		OracleConfirmations:    3,
		OracleCallbackGasLimit: 100000,
		OracleDelay:            defaultOracleDelay,
	}

	if v := os.Getenv("DAFFY_ACTIVATION_WINDOW"); v != "" {
		window, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "config: DAFFY_ACTIVATION_WINDOW")
		}
		cfg.ActivationWindow = window
	}

	if v := os.Getenv("DAFFY_MAX_TICKET_PRICE"); v != "" {
		price, ok := new(big.Int).SetString(v, 10)
		if !ok || price.Sign() < 0 {
			return nil, errors.Errorf("config: DAFFY_MAX_TICKET_PRICE %q is not a valid amount", v)
		}
		cfg.MaxTicketPrice = price
	}

	if v := os.Getenv("DAFFY_MAX_CREATOR_SHARE_PCT"); v != "" {
		pct, err := strconv.ParseUint(v, 10, 8)
		if err != nil || pct > 100 {
			return nil, errors.Errorf("config: DAFFY_MAX_CREATOR_SHARE_PCT %q is not a percentage", v)
		}
		cfg.MaxCreatorSharePct = uint8(pct)
	}

	if v := os.Getenv("DAFFY_ORACLE_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "config: DAFFY_ORACLE_DELAY")
		}
		cfg.OracleDelay = delay
	}

	platform := os.Getenv("DAFFY_PLATFORM_ACCOUNT")
	if !common.IsHexAddress(platform) {
		return nil, errors.Errorf("config: DAFFY_PLATFORM_ACCOUNT %q is not an address", platform)
	}
	cfg.PlatformAccount = common.HexToAddress(platform)

	operator := os.Getenv("DAFFY_OPERATOR_ACCOUNT")
	if !common.IsHexAddress(operator) {
		return nil, errors.Errorf("config: DAFFY_OPERATOR_ACCOUNT %q is not an address", operator)
	}
	cfg.OperatorAccount = common.HexToAddress(operator)

	if cfg.AssetBackend == "eth" && (cfg.ChainRPCURL == "" || cfg.OperatorKey == "") {
		return nil, errors.New("config: eth backend requires DAFFY_CHAIN_RPC_URL and DAFFY_OPERATOR_KEY")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
