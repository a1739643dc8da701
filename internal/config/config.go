package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-level configuration. Device behavior lives in the
// persisted config.json instead.
type Config struct {
	HTTPAddr string
	GRPCAddr string // "" disables the gRPC health server

	Env     string // "dev" | "prod"
	Store   string // "dir" | "sqlite" | "memory"
	DataDir string
	DBPath  string

	ReaderDevice  string // "-" reads tags from stdin
	PollTimeout   time.Duration
	ReaderRetries int

	LogLevel     string
	LogFile      string
	LogWarnBytes int64

	FlashBytes   uint64
	BatteryVolts float64
	LEDCount     int
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("TAPBOX_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	storeKind := strings.ToLower(getenvDefault("TAPBOX_STORE", "dir"))
	switch storeKind {
	case "dir", "sqlite", "memory":
	default:
		storeKind = "dir"
	}

	dataDir := getenvDefault("TAPBOX_DATA_DIR", "./data")

	return Config{
		HTTPAddr: getenvDefault("TAPBOX_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvDefault("TAPBOX_GRPC_ADDR", ":9090"),

		Env:     env,
		Store:   storeKind,
		DataDir: dataDir,
		DBPath:  getenvDefault("TAPBOX_DB_PATH", dataDir+"/tapbox.db"),

		ReaderDevice:  getenvDefault("TAPBOX_READER_DEVICE", "-"),
		PollTimeout:   time.Duration(getenvInt("TAPBOX_POLL_TIMEOUT_MS", 100)) * time.Millisecond,
		ReaderRetries: getenvInt("TAPBOX_READER_RETRIES", 5),

		LogLevel:     strings.ToLower(getenvDefault("TAPBOX_LOG_LEVEL", "info")),
		LogFile:      os.Getenv("TAPBOX_LOG_FILE"),
		LogWarnBytes: int64(getenvInt("TAPBOX_LOG_WARN_BYTES", 1<<20)),

		FlashBytes:   uint64(getenvInt("TAPBOX_FLASH_BYTES", 4<<20)),
		BatteryVolts: getenvFloat("TAPBOX_BATTERY_VOLTS", 4.2),
		LEDCount:     max(getenvInt("TAPBOX_LED_COUNT", 8), 1),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
