package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Bungie API
	BungieAPIKey string

	// Database
	DatabasePath string

	// Card rendering assets (fonts, power icon)
	AssetsPath string

	// Leaderboard behavior
	StalenessMinutes int
	TopN             int

	// Scheduled regeneration; 0 disables the scheduler
	RefreshIntervalMinutes int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_BOT_TOKEN"),
		BungieAPIKey: os.Getenv("BUNGIE_API_KEY"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		AssetsPath:   getEnvOrDefault("ASSETS_PATH", "./assets"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.StalenessMinutes, err = getEnvInt("LEADERBOARD_STALENESS_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.TopN, err = getEnvInt("LEADERBOARD_TOP_N", 10); err != nil {
		return nil, err
	}
	if cfg.RefreshIntervalMinutes, err = getEnvInt("REFRESH_INTERVAL_MINUTES", 0); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.BungieAPIKey == "" {
		return nil, fmt.Errorf("BUNGIE_API_KEY is required")
	}
	if cfg.StalenessMinutes <= 0 {
		return nil, fmt.Errorf("LEADERBOARD_STALENESS_MINUTES must be positive")
	}
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("LEADERBOARD_TOP_N must be positive")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
