package configs

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Analysis  AnalysisConfig
}

type AppConfig struct {
	Mode     string
	LogLevel string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type EngineConfig struct {
	BinaryPath    string
	MaxWorkers    int
	DefaultDepth  int
	MaxDepth      int
	MinDepth      int
	Threads       int
	HashSizeMB    int
	CallTimeout   time.Duration
}

type AnalysisConfig struct {
	PerGameTimeout     time.Duration
	MaxRetriesPerPly   int
	PuzzleSolutionPlies int
}

type RateLimitConfig struct {
	RequestsPerMinute       int
	AnalysisRequestsPerHour int
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	viper.SetDefault("APP_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	viper.SetDefault("ENGINE_BINARY_PATH", "stockfish")
	viper.SetDefault("ENGINE_MAX_WORKERS", 4)
	viper.SetDefault("ENGINE_DEFAULT_DEPTH", 15)
	viper.SetDefault("ENGINE_MIN_DEPTH", 10)
	viper.SetDefault("ENGINE_MAX_DEPTH", 20)
	viper.SetDefault("ENGINE_THREADS", 1)
	viper.SetDefault("ENGINE_HASH_SIZE_MB", 128)
	viper.SetDefault("ENGINE_CALL_TIMEOUT", "15s")

	viper.SetDefault("ANALYSIS_PER_GAME_TIMEOUT", "10m")
	viper.SetDefault("ANALYSIS_MAX_RETRIES_PER_PLY", 2)
	viper.SetDefault("ANALYSIS_PUZZLE_SOLUTION_PLIES", 6)

	viper.SetDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", 120)
	viper.SetDefault("RATE_LIMIT_ANALYSIS_REQUESTS_PER_HOUR", 200)

	viper.SetDefault("DATABASE_DSN", "chess:chess@tcp(127.0.0.1:3306)/chess_analysis?parseTime=true")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")

	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	viper.AutomaticEnv()

	readTimeout, _ := time.ParseDuration(viper.GetString("SERVER_READ_TIMEOUT"))
	writeTimeout, _ := time.ParseDuration(viper.GetString("SERVER_WRITE_TIMEOUT"))
	shutdownTimeout, _ := time.ParseDuration(viper.GetString("SERVER_SHUTDOWN_TIMEOUT"))
	engineCallTimeout, _ := time.ParseDuration(viper.GetString("ENGINE_CALL_TIMEOUT"))
	perGameTimeout, _ := time.ParseDuration(viper.GetString("ANALYSIS_PER_GAME_TIMEOUT"))
	connMaxLifetime, _ := time.ParseDuration(viper.GetString("DATABASE_CONN_MAX_LIFETIME"))

	return &Config{
		App: AppConfig{
			Mode:     viper.GetString("APP_MODE"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:            viper.GetInt("SERVER_PORT"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Engine: EngineConfig{
			BinaryPath:   viper.GetString("ENGINE_BINARY_PATH"),
			MaxWorkers:   viper.GetInt("ENGINE_MAX_WORKERS"),
			DefaultDepth: viper.GetInt("ENGINE_DEFAULT_DEPTH"),
			MinDepth:     viper.GetInt("ENGINE_MIN_DEPTH"),
			MaxDepth:     viper.GetInt("ENGINE_MAX_DEPTH"),
			Threads:      viper.GetInt("ENGINE_THREADS"),
			HashSizeMB:   viper.GetInt("ENGINE_HASH_SIZE_MB"),
			CallTimeout:  engineCallTimeout,
		},
		Analysis: AnalysisConfig{
			PerGameTimeout:      perGameTimeout,
			MaxRetriesPerPly:    viper.GetInt("ANALYSIS_MAX_RETRIES_PER_PLY"),
			PuzzleSolutionPlies: viper.GetInt("ANALYSIS_PUZZLE_SOLUTION_PLIES"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:       viper.GetInt("RATE_LIMIT_REQUESTS_PER_MINUTE"),
			AnalysisRequestsPerHour: viper.GetInt("RATE_LIMIT_ANALYSIS_REQUESTS_PER_HOUR"),
		},
		Database: DatabaseConfig{
			DSN:             viper.GetString("DATABASE_DSN"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ","),
		},
	}
}

// ClampDepth clamps a requested analysis depth to [MinDepth, MaxDepth]
// per §4.6's depth policy.
func (e EngineConfig) ClampDepth(requested int) int {
	if requested <= 0 {
		return e.DefaultDepth
	}
	if requested < e.MinDepth {
		return e.MinDepth
	}
	if requested > e.MaxDepth {
		return e.MaxDepth
	}
	return requested
}
