package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"workshop/internal/models"
)

type Config struct {
	App         AppConfig              `yaml:"app"`
	Database    DatabaseConfig         `yaml:"database"`
	Redis       RedisConfig            `yaml:"redis"`
	Monitoring  MonitoringConfig       `yaml:"monitoring"`
	Logging     LoggingConfig          `yaml:"logging"`
	API         APIConfig              `yaml:"api"`
	Workshop    WorkshopConfig         `yaml:"workshop"`
	Inventory   []models.InventoryItem `yaml:"inventory"`
	Technicians []models.Technician    `yaml:"technicians"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// EditStateTTL время жизни состояния редактирования (в секундах)
	EditStateTTL int `yaml:"edit_state_ttl_seconds"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type WorkshopConfig struct {
	PreviewTTLMinutes     int    `yaml:"preview_ttl_minutes"`
	DefaultTechnicianName string `yaml:"default_technician_name"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Enabled && c.API.Auth.Enabled {
		if err := ValidateAPIKeys(c.API.Auth.APIKeys); err != nil {
			return err
		}
	}

	return ValidateInventory(c.Inventory)
}

// ValidateAPIKeys требует непустые и уникальные ключи
func ValidateAPIKeys(keys []APIClientKey) error {
	if len(keys) == 0 {
		return errors.New("api auth enabled but no api keys configured")
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func ValidateInventory(items []models.InventoryItem) error {
	// Проверяем дубликаты кодов позиций
	codes := make(map[string]bool)
	for _, item := range items {
		if item.Code == "" {
			return fmt.Errorf("inventory item '%s' has empty code", item.Name)
		}
		if codes[item.Code] {
			return fmt.Errorf("duplicate inventory code found: %s", item.Code)
		}
		if item.Stock < 0 || item.MinStock < 0 {
			return fmt.Errorf("inventory item '%s' has negative stock", item.Code)
		}
		codes[item.Code] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// авторизация включается, если заданы ключи
	if len(c.API.Auth.APIKeys) > 0 {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Redis.EditStateTTL == 0 {
		c.Redis.EditStateTTL = models.DefaultEditStateTTL
	}
	if c.Workshop.PreviewTTLMinutes == 0 {
		c.Workshop.PreviewTTLMinutes = models.DefaultPreviewTTL
	}
	if c.Workshop.DefaultTechnicianName == "" {
		c.Workshop.DefaultTechnicianName = models.DefaultTechnicianName
	}
}
