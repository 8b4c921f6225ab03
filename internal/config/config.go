package config

import (
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Marketplace MarketplaceConfig
	Notifier    NotifierConfig
}

type ServerConfig struct {
	Port       string
	Env        string
	AdminToken string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MarketplaceConfig carries the business thresholds of the shop. It is
// passed explicitly into service constructors; there is no process-wide
// settings singleton.
type MarketplaceConfig struct {
	LowStockThreshold     int
	FreeDeliveryThreshold decimal.Decimal
	DeliveryCost          decimal.Decimal
	MaxCartItems          int
	MaxItemQuantity       int
	MaxPromocodeDiscount  int
}

// NotifierConfig configures the admin notification sink (Telegram chat)
type NotifierConfig struct {
	BotToken    string
	AdminChatID int64
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOW_STOCK_THRESHOLD", 30)
	viper.SetDefault("FREE_DELIVERY_THRESHOLD", "2000")
	viper.SetDefault("DELIVERY_COST", "500")
	viper.SetDefault("MAX_CART_ITEMS", 50)
	viper.SetDefault("MAX_ITEM_QUANTITY", 99)
	viper.SetDefault("MAX_PROMOCODE_DISCOUNT", 90)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:       viper.GetString("SERVER_PORT"),
			Env:        viper.GetString("SERVER_ENV"),
			AdminToken: viper.GetString("ADMIN_TOKEN"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Marketplace: MarketplaceConfig{
			LowStockThreshold:     viper.GetInt("LOW_STOCK_THRESHOLD"),
			FreeDeliveryThreshold: parseAmount(viper.GetString("FREE_DELIVERY_THRESHOLD")),
			DeliveryCost:          parseAmount(viper.GetString("DELIVERY_COST")),
			MaxCartItems:          viper.GetInt("MAX_CART_ITEMS"),
			MaxItemQuantity:       viper.GetInt("MAX_ITEM_QUANTITY"),
			MaxPromocodeDiscount:  viper.GetInt("MAX_PROMOCODE_DISCOUNT"),
		},
		Notifier: NotifierConfig{
			BotToken:    viper.GetString("TELEGRAM_BOT_TOKEN"),
			AdminChatID: viper.GetInt64("TELEGRAM_ADMIN_CHAT_ID"),
		},
	}
}

// parseAmount parses a money amount from configuration, falling back to zero
// on malformed input so startup still proceeds with a logged warning
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Printf("Warning: invalid decimal config value %q: %v", s, err)
		return decimal.Zero
	}
	return d
}
