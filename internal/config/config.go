package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds everything the bot reads from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	GuildID      string `env:"GUILD_ID"`

	// MainAdminID outranks every role mapping.
	MainAdminID string `env:"MAIN_ADMIN_ID"`

	// AdminRoles is a comma-separated list of role IDs. The first two map to
	// the admin level, the third to the moderator level.
	AdminRoles []string `env:"ADMIN_ROLES" envSeparator:","`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	DefaultVolume     int           `env:"DEFAULT_VOLUME" envDefault:"50"`
	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"3"`
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" envDefault:"300s"`
	ConnectTimeout    time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath  string `env:"LOG_PATH"`
}

// New parses the configuration from the environment.
func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	if cfg.DefaultVolume < 0 || cfg.DefaultVolume > 100 {
		return nil, fmt.Errorf("DEFAULT_VOLUME must be between 0 and 100, got %d", cfg.DefaultVolume)
	}
	if cfg.MaxQueueSize < 1 {
		return nil, fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", cfg.MaxQueueSize)
	}
	return &cfg, nil
}
