package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendOxiDB  = "oxidb"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	CORSOrigin      string

	Backend     string
	PageSize    int
	MaxBatchOps int

	OxiDBHost        string
	OxiDBPort        int
	PoolSize         int
	OxiDBDialTimeout time.Duration

	MongoURI      string
	MongoDatabase string

	Debug    bool
	GelfAddr string
}

func Load() *Config {
	return &Config{
		HTTPAddr:         getEnv("OXIFORMS_ADDR", ":8080"),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSOrigin:       getEnv("CORS_ORIGIN", "*"),
		Backend:          strings.ToLower(getEnv("STORE_BACKEND", BackendOxiDB)),
		PageSize:         getEnvInt("STORE_PAGE_SIZE", 500),
		MaxBatchOps:      getEnvInt("STORE_MAX_BATCH_OPS", 100),
		OxiDBHost:        getEnv("OXIDB_HOST", "127.0.0.1"),
		OxiDBPort:        getEnvInt("OXIDB_PORT", 4444),
		PoolSize:         getEnvInt("OXIDB_POOL_SIZE", 3),
		OxiDBDialTimeout: getEnvDuration("OXIDB_DIAL_TIMEOUT", 5*time.Second),
		MongoURI:         getEnv("MONGO_URI", "mongodb://127.0.0.1:27017/?replicaSet=rs0"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "oxiforms"),
		Debug:            getEnvBool("DEBUG", false),
		GelfAddr:         getEnv("GELF_ADDR", ""),
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOxiDB:
		if c.OxiDBPort <= 0 || c.OxiDBPort > 65535 {
			return fmt.Errorf("OXIDB_PORT %d out of range", c.OxiDBPort)
		}
		if c.PoolSize <= 0 {
			return fmt.Errorf("OXIDB_POOL_SIZE must be positive, got %d", c.PoolSize)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("STORE_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxBatchOps <= 0 {
		return fmt.Errorf("STORE_MAX_BATCH_OPS must be positive, got %d", c.MaxBatchOps)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
