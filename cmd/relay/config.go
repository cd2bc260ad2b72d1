package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	// Semicolon-separated list of allowed browser origins.
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:3000;http://localhost:3001"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=5s"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=30s"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
	DebugPort            int           `env:"DEBUG_PORT"` // 0 disables the debug server
}
