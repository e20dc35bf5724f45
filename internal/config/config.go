// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// The process exits if any field tagged "required" is missing.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration sourced from environment variables.
// Every worker and scheduler option has a default so no external configuration
// is mandatory beyond DATABASE_URL.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS"            envDefault:"25"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME"   envDefault:"5m"`
	DBStatementTimeoutMS int           `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"14000"`
	// DBQueryExecMode: "simple_protocol" (PgBouncer-compatible) or "extended_protocol".
	DBQueryExecMode string `env:"DB_QUERY_EXEC_MODE" envDefault:"simple_protocol"`

	// ── Process ──────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"60"`

	// ── Orchestration engine ─────────────────────────────────────────────────────
	// Base URL of the internal orchestration engine that executes jobs and
	// journey phases on the worker's behalf.
	EngineBaseURL        string        `env:"ENGINE_BASE_URL"        envDefault:"http://localhost:9090"`
	EngineRequestTimeout time.Duration `env:"ENGINE_REQUEST_TIMEOUT" envDefault:"10m"`

	// ── Job worker ───────────────────────────────────────────────────────────────
	WorkerPollIntervalMS       int  `env:"WORKER_POLL_INTERVAL_MS"       envDefault:"5000"`
	WorkerMaxConcurrentJobs    int  `env:"WORKER_MAX_CONCURRENT_JOBS"    envDefault:"3"`
	WorkerBaseBackoffMS        int  `env:"WORKER_BASE_BACKOFF_MS"        envDefault:"1000"`
	WorkerCleanupEnabled       bool `env:"WORKER_CLEANUP_ENABLED"        envDefault:"true"`
	WorkerCleanupRetentionDays int  `env:"WORKER_CLEANUP_RETENTION_DAYS" envDefault:"7"`

	// ── Journey scheduler ────────────────────────────────────────────────────────
	SchedulerPollIntervalMS int `env:"SCHEDULER_POLL_INTERVAL_MS" envDefault:"30000"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
