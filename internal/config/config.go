package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		CORSOrigins  []string      `yaml:"corsOrigins"`
		APIKeys      []string      `yaml:"apiKeys"`
		MaxUploadMB  int64         `yaml:"maxUploadMB"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
		RateLimit    struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // sqlite | mysql | postgres
		Path     string `yaml:"path"`   // sqlite file
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider       string        `yaml:"provider"` // gemini | openai
		Model          string        `yaml:"model"`
		APIKey         string        `yaml:"apiKey"`
		BaseURL        string        `yaml:"baseURL"`
		MaxAttempts    int           `yaml:"maxAttempts"`
		InitialBackoff time.Duration `yaml:"initialBackoff"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Notion struct {
		BaseURL string `yaml:"baseURL"`
		Version string `yaml:"version"`
	} `yaml:"notion"`

	ImgBB struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"imgbb"`

	EmailJS struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"emailjs"`

	Report struct {
		PDFEnabled bool   `yaml:"pdfEnabled"`
		ChromeBin  string `yaml:"chromeBin"`
		Headless   bool   `yaml:"headless"`
	} `yaml:"report"`

	Settings struct {
		Path string `yaml:"path"`
	} `yaml:"settings"`

	// Defaults seed the service settings until they are saved once.
	Defaults settings.Settings `yaml:"defaults"`

	Log struct {
		Level string `yaml:"level"`
		Env   string `yaml:"env"` // development | production
	} `yaml:"log"`
}

// Default returns a config that runs locally with sqlite and in-memory photos.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.MaxUploadMB = 20
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 3 * time.Minute
	c.Server.IdleTimeout = 2 * time.Minute
	c.Server.RateLimit.RPS = 2
	c.Server.RateLimit.Burst = 10
	c.Database.Driver = "sqlite"
	c.Database.Path = "data/intakes.db"
	c.Minio.BucketName = "intake-photos"
	c.AI.Provider = "gemini"
	c.AI.MaxAttempts = 3
	c.AI.InitialBackoff = time.Second
	c.AI.Timeout = 50 * time.Second
	c.Report.PDFEnabled = true
	c.Report.Headless = true
	c.Settings.Path = "data/settings.yaml"
	c.Defaults.NotionTitleKey = settings.DefaultTitleKey
	c.Log.Level = "info"
	c.Log.Env = "development"
	return &c
}

// Load baca file config.yaml di atas Default(). File yang tidak ada bukan error.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	switch c.AI.Provider {
	case "openai":
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	default:
		setString(&c.AI.APIKey, "GEMINI_API_KEY", "API_KEY")
	}
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Defaults.NotionToken, "NOTION_TOKEN")
	setString(&c.Defaults.NotionDatabaseID, "NOTION_DATABASE_ID")
	setString(&c.Defaults.ImgBBAPIKey, "IMGBB_API_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the values main depends on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("ai.provider: unsupported %q", c.AI.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Minio.Enabled && c.Minio.Endpoint == "" {
		return errors.New("minio.endpoint is required when minio.enabled")
	}
	if budget := c.AnalyzeBudget(); budget > 0 && c.Server.WriteTimeout > 0 && budget >= c.Server.WriteTimeout {
		return fmt.Errorf("ai: worst-case analysis %s does not fit server.writeTimeout %s", budget, c.Server.WriteTimeout)
	}
	return nil
}

// AnalyzeBudget is the longest one analysis can take: every attempt hitting ai.timeout plus the
// doubling backoff between them. Zero when ai.timeout is unset.
func (c *Config) AnalyzeBudget() time.Duration {
	if c.AI.Timeout <= 0 {
		return 0
	}
	attempts := max(c.AI.MaxAttempts, 1)
	budget := time.Duration(attempts) * c.AI.Timeout
	delay := c.AI.InitialBackoff
	for i := 1; i < attempts; i++ {
		budget += delay
		delay *= 2
	}
	return budget
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	switch c.Database.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres":
		return c.PostgresDSN()
	}
	return c.Database.Path
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
