/**
 * @description
 * Configuration management for the fee ledger service.
 */
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	ClerkJWKSURL     string `mapstructure:"CLERK_JWKS_URL"`
	TenantServiceURL string `mapstructure:"TENANT_SERVICE_URL"`
	InternalAPIKey   string `mapstructure:"INTERNAL_API_KEY"`

	PaystackSecretKey    string `mapstructure:"PAYSTACK_SECRET_KEY"`
	StripeSecretKey      string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	FlutterwaveSecretKey string `mapstructure:"FLUTTERWAVE_SECRET_KEY"`
	FlutterwaveVerifHash string `mapstructure:"FLUTTERWAVE_VERIF_HASH"`

	DeferredBillingSchedule string `mapstructure:"DEFERRED_BILLING_SCHEDULE"`
	AlertEvaluationSchedule string `mapstructure:"ALERT_EVALUATION_SCHEDULE"`
	AutoMatchSchedule       string `mapstructure:"AUTO_MATCH_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DEFERRED_BILLING_SCHEDULE", "0 0 * * *")
	viper.SetDefault("ALERT_EVALUATION_SCHEDULE", "30 0 * * *")
	viper.SetDefault("AUTO_MATCH_SCHEDULE", "0 * * * *")
	viper.AutomaticEnv()

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("TENANT_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("FLUTTERWAVE_SECRET_KEY")
	_ = viper.BindEnv("FLUTTERWAVE_VERIF_HASH")
	_ = viper.BindEnv("DEFERRED_BILLING_SCHEDULE")
	_ = viper.BindEnv("ALERT_EVALUATION_SCHEDULE")
	_ = viper.BindEnv("AUTO_MATCH_SCHEDULE")

	err = viper.Unmarshal(&config)
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}
	return
}
