package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"indexer/internal/logger"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DefaultDatabasePath       = "persistent.db"
	DefaultClaimTolerance     = 1
	DefaultRateDriftTolerance = 1
	DefaultRetryAttempts      = 5
	DefaultRetryInterval      = 500 * time.Millisecond
	DefaultLogMaxSizeMB       = 100
	DefaultLogMaxBackups      = 3
)

type Configuration struct {
	DatabasePath string
	EventsFile   string
	MetricsAddr  string

	Logger logger.Configuration

	// ClaimTolerance is how far, in reward token units, a claim may exceed the
	// recomputed unclaimed balance before the event is rejected.
	ClaimTolerance *uint256.Int
	// RateDriftTolerance is how far, in reward token units over the period, a
	// supplied reward rate may differ from the recomputed one before it is reported.
	RateDriftTolerance *uint256.Int

	RetryAttempts uint64
	RetryInterval time.Duration
}

func Default() Configuration {
	return Configuration{
		DatabasePath:       DefaultDatabasePath,
		Logger:             logger.Configuration{Level: "info", Console: true, MaxSizeMB: DefaultLogMaxSizeMB, MaxBackups: DefaultLogMaxBackups},
		ClaimTolerance:     uint256.NewInt(DefaultClaimTolerance),
		RateDriftTolerance: uint256.NewInt(DefaultRateDriftTolerance),
		RetryAttempts:      DefaultRetryAttempts,
		RetryInterval:      DefaultRetryInterval,
	}
}

// Load reads envFile when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return Configuration{}, errors.Wrapf(err, "load %s", envFile)
		}
	}

	configuration := Default()
	lookup := env{}

	configuration.DatabasePath = lookup.string("DATABASE_PATH", configuration.DatabasePath)
	configuration.EventsFile = lookup.string("EVENTS_FILE", "")
	configuration.MetricsAddr = lookup.string("METRICS_ADDR", "")

	configuration.Logger.LogFile = lookup.string("LOG_FILE", "")
	configuration.Logger.ErrorFile = lookup.string("LOG_ERROR_FILE", "")
	configuration.Logger.Level = lookup.string("LOG_LEVEL", configuration.Logger.Level)
	configuration.Logger.Console = lookup.bool("LOG_CONSOLE", configuration.Logger.Console)
	configuration.Logger.MaxSizeMB = lookup.int("LOG_MAX_SIZE_MB", configuration.Logger.MaxSizeMB)
	configuration.Logger.MaxBackups = lookup.int("LOG_MAX_BACKUPS", configuration.Logger.MaxBackups)

	configuration.ClaimTolerance = lookup.amount("CLAIM_TOLERANCE", configuration.ClaimTolerance)
	configuration.RateDriftTolerance = lookup.amount("RATE_DRIFT_TOLERANCE", configuration.RateDriftTolerance)

	configuration.RetryAttempts = lookup.uint("RETRY_ATTEMPTS", configuration.RetryAttempts)
	configuration.RetryInterval = lookup.duration("RETRY_INTERVAL", configuration.RetryInterval)

	if lookup.err != nil {
		return Configuration{}, lookup.err
	}
	return configuration, nil
}

// env reads typed variables and keeps the first parse error.
type env struct {
	err error
}

func (e *env) raw(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (e *env) string(key, fallback string) string {
	if value, ok := e.raw(key); ok {
		return value
	}
	return fallback
}

func (e *env) bool(key string, fallback bool) bool {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *env) int(key string, fallback int) int {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		if err == nil {
			err = errors.New("must not be negative")
		}
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *env) uint(key string, fallback uint64) uint64 {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *env) amount(key string, fallback *uint256.Int) *uint256.Int {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := uint256.FromDecimal(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return parsed
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "config: %s=%q", key, value)
	}
}
