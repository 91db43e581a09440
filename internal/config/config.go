package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Storage    StorageConfig
	ElevenLabs ElevenLabsConfig
	OpenAI     OpenAIConfig
	Render     RenderConfig
	Gateway    GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RenderPerHour int
	CancelPerMin  int
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type RenderConfig struct {
	// Concurrency is the asynq worker concurrency.
	Concurrency int
	// FFmpegBinary overrides the ffmpeg binary used for MP3 encoding.
	FFmpegBinary string
	// MaxAssetBytes caps downloaded background-music assets.
	MaxAssetBytes int64
	// ClaimLeaseSeconds is how long a processing job may go without a
	// progress write before it becomes reclaimable.
	ClaimLeaseSeconds int
	// JobTTLHours is the retention of job records in Redis.
	JobTTLHours int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.render_per_hour", "RATELIMIT_RENDER_PER_HOUR")
	_ = viper.BindEnv("ratelimit.cancel_per_min", "RATELIMIT_CANCEL_PER_MIN")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("render.concurrency", "RENDER_CONCURRENCY")
	_ = viper.BindEnv("render.ffmpeg_binary", "RENDER_FFMPEG_BINARY")
	_ = viper.BindEnv("render.max_asset_bytes", "RENDER_MAX_ASSET_BYTES")
	_ = viper.BindEnv("render.claim_lease_seconds", "RENDER_CLAIM_LEASE_SECONDS")
	_ = viper.BindEnv("render.job_ttl_hours", "RENDER_JOB_TTL_HOURS")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.render_per_hour", 20)
	viper.SetDefault("ratelimit.cancel_per_min", 30)
	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	viper.SetDefault("openai.base_url", "https://api.openai.com")
	viper.SetDefault("render.concurrency", 4)
	viper.SetDefault("render.ffmpeg_binary", "ffmpeg")
	viper.SetDefault("render.max_asset_bytes", 200*1024*1024)
	viper.SetDefault("render.claim_lease_seconds", 300)
	viper.SetDefault("render.job_ttl_hours", 72)
	viper.SetDefault("gateway.enabled", false)

	// Config file is optional; env vars and defaults are enough to run.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
			CancelPerMin:  viper.GetInt("ratelimit.cancel_per_min"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  viper.GetString("elevenlabs.api_key"),
			BaseURL: viper.GetString("elevenlabs.base_url"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
		},
		Render: RenderConfig{
			Concurrency:       viper.GetInt("render.concurrency"),
			FFmpegBinary:      viper.GetString("render.ffmpeg_binary"),
			MaxAssetBytes:     viper.GetInt64("render.max_asset_bytes"),
			ClaimLeaseSeconds: viper.GetInt("render.claim_lease_seconds"),
			JobTTLHours:       viper.GetInt("render.job_ttl_hours"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
