package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string
	DBMaxOpenConns   int
	DBAutoMigrate    bool

	JWTSecret string // 認証プロバイダーのJWT署名シークレット

	StripeSecretKey        string
	StripeWebhookSecret    string // 空なら署名検証なし（ローカル開発用）
	StripeCurrency         string
	StripeAllowedCountries []string

	ResendAPIKey string
	EmailFrom    string

	RedisURL string // 空ならwebhookの重複排除なし

	GoEnv             string // dev/prod
	LogLevel          string
	SiteURL           string // メール内リンク
	FEURL             string // フロントURL（CORS）
	CheckoutRateLimit float64
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	maxConns, err := atoiDefault("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	rateLimit, err := floatDefault("CHECKOUT_RATE_LIMIT", 5)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		DBMaxOpenConns:   maxConns,
		DBAutoMigrate:    os.Getenv("DB_AUTO_MIGRATE") == "true",

		JWTSecret: os.Getenv("JWT_SECRET"),

		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeCurrency:         strings.ToLower(getenv("STRIPE_CURRENCY", "usd")),
		StripeAllowedCountries: splitList(getenv("STRIPE_ALLOWED_COUNTRIES", "US,CA")),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getenv("EMAIL_FROM", "Terra Echo Studios <orders@terraechostudios.com>"),

		RedisURL: os.Getenv("REDIS_URL"),

		GoEnv:             getenv("GO_ENV", "dev"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		SiteURL:           strings.TrimRight(getenv("SITE_URL", "http://localhost:5173"), "/"),
		FEURL:             getenv("FE_URL", "http://localhost:5173"),
		CheckoutRateLimit: rateLimit,
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.ResendAPIKey == "" {
		return Config{}, fmt.Errorf("RESEND_API_KEY is required")
	}
	if len(cfg.StripeAllowedCountries) == 0 {
		return Config{}, fmt.Errorf("STRIPE_ALLOWED_COUNTRIES must not be empty")
	}
	if cfg.GoEnv == "prod" && cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when GO_ENV=prod")
	}

	return cfg, nil
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
