package config

import (
	"os"
	"strconv"
	"time"

	"checkout-system/internal/providers/yespay"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (user-facing notifications)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// External collaborators
	AuthBaseURL     string
	AuthDeviceKey   string
	CommerceBaseURL string
	CommerceAPIKey  string
	YesPay          yespay.Config

	// Checkout configuration
	SnapshotTTL     time.Duration
	CheckoutTimeout time.Duration

	// Rate limiting
	PromoRateLimit    int64
	CheckoutRateLimit int64
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Collaborators
		AuthBaseURL:     getEnv("AUTH_BASE_URL", "http://localhost:9001"),
		AuthDeviceKey:   getEnv("AUTH_DEVICE_KEY", ""),
		CommerceBaseURL: getEnv("COMMERCE_BASE_URL", "http://localhost:9002"),
		CommerceAPIKey:  getEnv("COMMERCE_API_KEY", ""),
		YesPay: yespay.Config{
			ClientConfig: yespay.ClientConfig{
				BaseURL:   getEnv("YESPAY_BASE_URL", "http://localhost:9003"),
				PartnerID: getEnv("YESPAY_PARTNER_ID", ""),
				ClientID:  getEnv("YESPAY_CLIENT_ID", ""),
				ClientKey: getEnv("YESPAY_CLIENT_KEY", ""),
				HMACKey:   getEnv("YESPAY_HMAC_KEY", ""),
			},
			PNSubKey:    getEnv("YESPAY_PN_SUBKEY", ""),
			PNSubSecret: getEnv("YESPAY_PN_SUBSECRET", ""),
			PNUUID:      getEnv("YESPAY_PN_UUID", ""),
			PNChannel:   getEnv("YESPAY_PN_CHANNEL", "yespay-payment-notifications"),
			PNCipherKey: getEnv("YESPAY_PN_CIPHERKEY", ""),
		},

		// Checkout
		SnapshotTTL:     getEnvAsDuration("SNAPSHOT_TTL", "30m"),
		CheckoutTimeout: getEnvAsDuration("CHECKOUT_TIMEOUT", "5m"),

		// Rate limiting
		PromoRateLimit:    int64(getEnvAsInt("PROMO_RATE_LIMIT", 10)),
		CheckoutRateLimit: int64(getEnvAsInt("CHECKOUT_RATE_LIMIT", 20)),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
