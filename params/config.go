package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type API struct {
	Addr string // listen address for REST + WS
}

type Storage struct {
	DataDir string // pebble databases and logs live under here
}

type Fees struct {
	RateBps   int64 // taker fee in basis points
	Recipient common.Address
	FeeToken  common.Address
}

type Node struct {
	Admin       common.Address // holds ADMIN and BOOKER at startup
	Escrow      common.Address // account backing resting orders
	LogFile     string
	LogLevel    string
	EventBuffer int // event bus channel capacity
}

type Config struct {
	API     API
	Storage Storage
	Fees    Fees
	Node    Node
}

func Default() Config {
	return Config{
		API:     API{Addr: ":8080"},
		Storage: Storage{DataDir: "data"},
		Fees:    Fees{RateBps: 30}, // 0.3% taker fee until an admin configures otherwise
		Node: Node{
			Escrow:      common.HexToAddress("0x00000000000000000000000000000000000e5c10"),
			LogFile:     "data/clobd.log",
			LogLevel:    "info",
			EventBuffer: 4096,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Node.LogLevel = level
	}
	if admin := os.Getenv("ADMIN_ADDRESS"); admin != "" {
		cfg.Node.Admin = common.HexToAddress(admin)
	}
	if escrow := os.Getenv("ESCROW_ADDRESS"); escrow != "" {
		cfg.Node.Escrow = common.HexToAddress(escrow)
	}
	if buf := os.Getenv("EVENT_BUFFER"); buf != "" {
		if n, err := strconv.Atoi(buf); err == nil && n > 0 {
			cfg.Node.EventBuffer = n
		}
	}
	if bps := os.Getenv("FEE_RATE_BPS"); bps != "" {
		if n, err := strconv.ParseInt(bps, 10, 64); err == nil && n >= 0 {
			cfg.Fees.RateBps = n
		}
	}
	if to := os.Getenv("FEE_RECIPIENT"); to != "" {
		cfg.Fees.Recipient = common.HexToAddress(to)
	}
	if token := os.Getenv("FEE_TOKEN"); token != "" {
		cfg.Fees.FeeToken = common.HexToAddress(token)
	}

	return cfg
}
