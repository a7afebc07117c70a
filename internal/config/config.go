package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"drone-dispatch/internal/domain"
)

type Config struct {
	// DatabaseURL selects the Postgres store. Empty runs on the in-memory store.
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	ThriftAddr     string
	MigrateOnStart bool
	NATSURL        string
	NATSSubject    string
	OutboxEnabled  bool
	OutboxInterval time.Duration
	OutboxBatch    int

	DispatchSchedule string
	SimStepInterval  time.Duration
	SimMaxSteps      int
	FleetFile        string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present, then the process environment.
func Load() (Config, error) {
	return load(true)
}

// LoadWorker is Load without the JWT requirement.
func LoadWorker() (Config, error) {
	return load(false)
}

func load(requireJWT bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if requireJWT && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.ThriftAddr = getString("THRIFT_ADDR", ":9091")
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getString("NATS_SUBJECT", "dispatch.events")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", true)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	cfg.DispatchSchedule = os.Getenv("DISPATCH_SCHEDULE")
	cfg.SimStepInterval = getDuration("SIM_STEP_INTERVAL", 200*time.Millisecond)
	cfg.SimMaxSteps = getInt("SIM_MAX_STEPS", 0)
	cfg.FleetFile = os.Getenv("FLEET_FILE")
	cfg.LogLevel = getString("LOG_LEVEL", "info")
	cfg.LogFormat = getString("LOG_FORMAT", "json")
	return cfg, nil
}

type fleetFile struct {
	Drones []domain.DroneSpec `mapstructure:"drones"`
}

// LoadFleet reads drone specs from a yaml, json or toml file. An empty path
// yields the default fleet.
func LoadFleet(path string) ([]domain.DroneSpec, error) {
	if path == "" {
		return append([]domain.DroneSpec(nil), domain.DefaultFleetSpecs...), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}
	var file fleetFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode fleet file: %w", err)
	}
	if len(file.Drones) == 0 {
		return nil, fmt.Errorf("fleet file %s: no drones: %w", path, domain.ErrInvalid)
	}
	for i, spec := range file.Drones {
		if err := domain.ValidateDroneSpec(spec); err != nil {
			return nil, fmt.Errorf("fleet file drone %d: %w", i+1, err)
		}
	}
	return file.Drones, nil
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
