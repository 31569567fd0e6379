package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the delivery relay
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Gumroad   GumroadConfig   `yaml:"gumroad"`
	Directory DirectoryConfig `yaml:"directory"`
	Redis     RedisConfig     `yaml:"redis"`
	FileStore FileStoreConfig `yaml:"file_store"`
	History   HistoryConfig   `yaml:"history"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Admin     AdminConfig     `yaml:"admin"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken       string `yaml:"bot_token"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c TelegramConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GumroadConfig holds settings for the inbound purchase webhook
type GumroadConfig struct {
	// SharedSecret, when set, must match the X-Gumroad-Secret header on
	// inbound webhooks. Stands in for provider signature verification.
	SharedSecret string `yaml:"shared_secret"`
}

// DirectoryConfig holds recipient directory persistence settings
type DirectoryConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// RedisConfig holds Redis settings for webhook deduplication
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	DedupTTLMinutes int    `yaml:"dedup_ttl_minutes"`
}

// DedupTTL returns how long a claimed purchase event ID stays claimed
func (c RedisConfig) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLMinutes) * time.Minute
}

// FileStoreConfig holds product file storage configuration
type FileStoreConfig struct {
	Type       string `yaml:"type"` // "local" or "s3"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c FileStoreConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// HistoryConfig holds delivery outcome history settings
type HistoryConfig struct {
	MaxEntries    int    `yaml:"max_entries"`
	DynamoDBTable string `yaml:"dynamodb_table"` // Empty disables the DynamoDB sink
	AWSRegion     string `yaml:"aws_region"`
}

// AdminConfig protects the operator endpoints
type AdminConfig struct {
	Token string `yaml:"token"`
}

// ProductConfig describes one deliverable product bundle
type ProductConfig struct {
	Files   []FileConfig `yaml:"files"`
	Message string       `yaml:"message"`
}

// FileConfig names one bundle file: the file-store key and the filename
// the customer sees. Filename defaults to the key.
type FileConfig struct {
	Key      string `yaml:"key"`
	Filename string `yaml:"filename"`
}

// CatalogConfig holds the closed product catalog and the mapping from
// provider product IDs to catalog keys
type CatalogConfig struct {
	Products       map[string]ProductConfig `yaml:"products"`
	Mapping        map[string]string        `yaml:"mapping"`
	WelcomeWrapper string                   `yaml:"welcome_wrapper"`
	Confirmation   string                   `yaml:"confirmation"`
}

// Default texts carried over from the original delivery bot.
const (
	defaultWelcomeWrapper = "¡Hola {{ name | default: \"Cliente\" }}! 🎉\n\n{{ bundle }}\n\n📥 Descargando archivos..."
	defaultConfirmation   = "✅ Entrega completada\n📞 Soporte: @jorge_cora\n⭐ ¡Califica tu experiencia!"
)

// DefaultCatalog returns the built-in product set. A config file catalog
// section replaces (not merges with) these defaults.
func DefaultCatalog() CatalogConfig {
	return CatalogConfig{
		Products: map[string]ProductConfig{
			"pack_plantillas": {
				Files: []FileConfig{
					{Key: "plantillas_premium.zip"},
					{Key: "documentacion.pdf"},
				},
				Message: "🎨 Pack Plantillas Premium CO•RA\n✅ 5 plantillas profesionales\n📁 Código fuente completo\n📖 Documentación incluida",
			},
			"catalogo_personalizado": {
				Files: []FileConfig{
					{Key: "catalogo_personalizado.zip"},
					{Key: "guia_implementacion.pdf"},
				},
				Message: "🚀 Catálogo Personalizado IA\n✅ 20 diseños únicos\n🎯 Optimizado para tu marca\n⚡ Consultoría incluida",
			},
			"consultoria_express": {
				Files: []FileConfig{
					{Key: "analisis_tecnico.pdf"},
					{Key: "codigo_solucion.zip"},
				},
				Message: "💡 Consultoría Express\n✅ Análisis técnico completo\n🔧 Implementación funcional\n📞 Seguimiento 7 días",
			},
		},
		Mapping: map[string]string{
			"pack_plantillas_premium":   "pack_plantillas",
			"catalogo_personalizado_ia": "catalogo_personalizado",
			"consultoria_express_dev":   "consultoria_express",
		},
		WelcomeWrapper: defaultWelcomeWrapper,
		Confirmation:   defaultConfirmation,
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Telegram.BaseURL == "" {
		cfg.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.TimeoutSeconds == 0 {
		cfg.Telegram.TimeoutSeconds = 30
	}
	if cfg.Redis.DedupTTLMinutes == 0 {
		cfg.Redis.DedupTTLMinutes = 24 * 60
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.LocalPath == "" {
		cfg.FileStore.LocalPath = "./productos"
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 500
	}
	if len(cfg.Catalog.Products) == 0 {
		def := DefaultCatalog()
		cfg.Catalog.Products = def.Products
		if len(cfg.Catalog.Mapping) == 0 {
			cfg.Catalog.Mapping = def.Mapping
		}
	}
	if cfg.Catalog.WelcomeWrapper == "" {
		cfg.Catalog.WelcomeWrapper = defaultWelcomeWrapper
	}
	if cfg.Catalog.Confirmation == "" {
		cfg.Catalog.Confirmation = defaultConfirmation
	}
	// Filename defaults to the store key
	for name, p := range cfg.Catalog.Products {
		for i, f := range p.Files {
			if f.Filename == "" {
				p.Files[i].Filename = f.Key
			}
		}
		cfg.Catalog.Products[name] = p
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_BASE_URL"); v != "" {
		cfg.Telegram.BaseURL = v
	}
	if v := os.Getenv("GUMROAD_SHARED_SECRET"); v != "" {
		cfg.Gumroad.SharedSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Directory.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FILE_STORE_PATH"); v != "" {
		cfg.FileStore.LocalPath = v
	}
	if v := os.Getenv("FILE_STORE_S3_BUCKET"); v != "" {
		cfg.FileStore.S3Bucket = v
		cfg.FileStore.Type = "s3"
	}
	if v := os.Getenv("RELAY_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}

	return cfg, nil
}
