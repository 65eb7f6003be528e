package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	OAuth       OAuthConfig
	CORS        CORSConfig
	Log         LogConfig
	Points      PointsConfig
	Referrals   ReferralConfig
	Rooms       RoomConfig
	Statements  StatementConfig
	Mail        MailConfig
	Leaderboard LeaderboardConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

// OAuthConfig holds provider credentials for social sign-in.
type OAuthConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURL  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PointsConfig tunes the transactional points subsystem.
type PointsConfig struct {
	TxMaxRetries int
}

// ReferralConfig defines bonuses granted on referral outcomes.
type ReferralConfig struct {
	HireBonus   int
	SignupBonus int
}

// RoomConfig bounds collaboration rooms.
type RoomConfig struct {
	DefaultCapacity int
	MessagePageSize int
}

// StatementConfig controls async points-statement exports.
type StatementConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// MailConfig configures outbound email through SendGrid.
type MailConfig struct {
	Enabled     bool
	SendGridKey string
	FromName    string
	FromAddress string
}

// LeaderboardConfig governs the cached leaderboard.
type LeaderboardConfig struct {
	Size     int
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.OAuth = OAuthConfig{
		GoogleClientID:       v.GetString("OAUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("OAUTH_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:    v.GetString("OAUTH_GOOGLE_REDIRECT_URL"),
		LinkedInClientID:     v.GetString("OAUTH_LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: v.GetString("OAUTH_LINKEDIN_CLIENT_SECRET"),
		LinkedInRedirectURL:  v.GetString("OAUTH_LINKEDIN_REDIRECT_URL"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Points = PointsConfig{
		TxMaxRetries: v.GetInt("POINTS_TX_MAX_RETRIES"),
	}

	cfg.Referrals = ReferralConfig{
		HireBonus:   v.GetInt("REFERRAL_HIRE_BONUS"),
		SignupBonus: v.GetInt("REFERRAL_SIGNUP_BONUS"),
	}

	cfg.Rooms = RoomConfig{
		DefaultCapacity: v.GetInt("ROOM_DEFAULT_CAPACITY"),
		MessagePageSize: v.GetInt("ROOM_MESSAGE_PAGE_SIZE"),
	}

	cfg.Statements = StatementConfig{
		Enabled:           v.GetBool("ENABLE_STATEMENTS"),
		StorageDir:        v.GetString("STATEMENTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("STATEMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("STATEMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("STATEMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("STATEMENTS_WORKER_RETRIES"),
	}

	cfg.Mail = MailConfig{
		Enabled:     v.GetBool("ENABLE_MAIL"),
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		FromAddress: v.GetString("MAIL_FROM_ADDRESS"),
	}

	cfg.Leaderboard = LeaderboardConfig{
		Size:     v.GetInt("LEADERBOARD_SIZE"),
		CacheTTL: parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "decode")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "decode-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("POINTS_TX_MAX_RETRIES", 3)

	v.SetDefault("REFERRAL_HIRE_BONUS", 500)
	v.SetDefault("REFERRAL_SIGNUP_BONUS", 100)

	v.SetDefault("ROOM_DEFAULT_CAPACITY", 6)
	v.SetDefault("ROOM_MESSAGE_PAGE_SIZE", 50)

	v.SetDefault("ENABLE_STATEMENTS", false)
	v.SetDefault("STATEMENTS_STORAGE_DIR", "./statements")
	v.SetDefault("STATEMENTS_SIGNED_URL_SECRET", "dev_statements_secret")
	v.SetDefault("STATEMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("STATEMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("STATEMENTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_MAIL", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Decode")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@decode.dev")

	v.SetDefault("LEADERBOARD_SIZE", 20)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
