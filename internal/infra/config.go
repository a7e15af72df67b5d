package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hexhub/platform/internal/domain"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Server
	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	MonitorTimeout time.Duration `env:"MONITOR_TIMEOUT" envDefault:"55s"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`

	// Persistent connections
	AckTimeout     time.Duration `env:"ACK_TIMEOUT" envDefault:"60s"`
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Guards
	CreateGameRate int `env:"CREATE_GAME_RATE" envDefault:"30"`

	// Game defaults
	DefaultMaxSettlements int `env:"DEFAULT_MAX_SETTLEMENTS" envDefault:"5"`
	DefaultMaxCities      int `env:"DEFAULT_MAX_CITIES" envDefault:"4"`
	DefaultMaxRoads       int `env:"DEFAULT_MAX_ROADS" envDefault:"15"`
	DefaultKnights        int `env:"DEFAULT_DEV_KNIGHT" envDefault:"14"`
	DefaultVictoryPoints  int `env:"DEFAULT_DEV_VICTORY_POINT" envDefault:"5"`
	DefaultYearOfPlenty   int `env:"DEFAULT_DEV_YEAR_OF_PLENTY" envDefault:"2"`
	DefaultMonopoly       int `env:"DEFAULT_DEV_MONOPOLY" envDefault:"2"`
	DefaultRoadBuilding   int `env:"DEFAULT_DEV_ROAD_BUILDING" envDefault:"2"`
	MaritimeRatio         int `env:"MARITIME_RATIO" envDefault:"4"`

	// Kafka mirror
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"game-events"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"event-tail"`

	// Event archive
	ArchiveEnabled     bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	ArchiveDatabaseURL string `env:"ARCHIVE_DATABASE_URL"`

	RelayBuffer int `env:"RELAY_BUFFER" envDefault:"1024"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTPPort)
	}
	if c.MonitorTimeout <= 0 {
		return fmt.Errorf("MONITOR_TIMEOUT must be positive")
	}
	if c.AckTimeout <= 0 || c.WSWriteTimeout <= 0 {
		return fmt.Errorf("ACK_TIMEOUT and WS_WRITE_TIMEOUT must be positive")
	}
	if c.ArchiveEnabled && c.ArchiveDatabaseURL == "" {
		return fmt.Errorf("ARCHIVE_ENABLED requires ARCHIVE_DATABASE_URL")
	}
	if c.KafkaEnabled && strings.TrimSpace(c.KafkaBrokers) == "" {
		return fmt.Errorf("KAFKA_ENABLED requires KAFKA_BROKERS")
	}
	if c.RelayBuffer <= 0 {
		return fmt.Errorf("RELAY_BUFFER must be positive")
	}
	if err := c.GameDefaults().Validate(); err != nil {
		return fmt.Errorf("game defaults: %w", err)
	}
	return nil
}

// GameDefaults builds the GameInfo new games are seeded with unless the
// creator overrides it.
func (c *Config) GameDefaults() domain.GameInfo {
	info := domain.DefaultGameInfo()
	info.MaxEntitlements = domain.Entitlements{
		domain.Settlement: c.DefaultMaxSettlements,
		domain.City:       c.DefaultMaxCities,
		domain.Road:       c.DefaultMaxRoads,
	}
	info.DevCards = domain.DevCardCounts{
		domain.Knight:       c.DefaultKnights,
		domain.VictoryPoint: c.DefaultVictoryPoints,
		domain.YearOfPlenty: c.DefaultYearOfPlenty,
		domain.Monopoly:     c.DefaultMonopoly,
		domain.RoadBuilding: c.DefaultRoadBuilding,
	}
	info.MaritimeRatio = c.MaritimeRatio
	return info
}

// CORSOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
