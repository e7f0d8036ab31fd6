package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Store      StoreConfig
	Dispatch   DispatchConfig
	Service    ServiceConfig
	Extraction ExtractionConfig
	Server     ServerConfig
	Index      IndexConfig
	Log        LogConfig
}

// StoreConfig holds pending-store locations
type StoreConfig struct {
	DownloadDir string `env:"DOWNLOAD_DIR" envDefault:"./downloads" validate:"required"`
	PendingRoot string `env:"PENDING_ROOT" envDefault:"pending" validate:"required"`
}

// Root is the directory holding the per-document pending folders.
func (s StoreConfig) Root() string {
	return filepath.Join(s.DownloadDir, s.PendingRoot)
}

// DispatchConfig holds the page-selection policy and admission control
type DispatchConfig struct {
	SourceDir string `env:"SOURCE_DIR" envDefault:"./documents" validate:"required"`
	ResultDir string `env:"RESULT_DIR" envDefault:"./downloads/result" validate:"required"`

	// SplitEnabled sends pages as separate jobs. With SplitPages empty every page is sent.
	SplitEnabled bool `env:"SPLIT_ENABLED" envDefault:"false"`

	// Pages outside the document, including 0, are skipped at extraction time.
	SplitPages []int `env:"SPLIT_PAGES"`

	// SelectedPages is the explicit page list used when split mode is off.
	SelectedPages []int `env:"SELECTED_PAGES"`

	MaxConcurrent int           `env:"MAX_CONCURRENT_REQUESTS" envDefault:"1" validate:"min=1"`
	BatchDelay    time.Duration `env:"BATCH_DELAY" envDefault:"1s" validate:"min=0"`
}

// ServiceConfig describes the external OCR service
type ServiceConfig struct {
	BaseURL         string        `env:"OCR_BASE_URL" validate:"omitempty,url"`
	APIKey          string        `env:"OCR_API_KEY"`
	APIKeyHeader    string        `env:"OCR_API_KEY_HEADER" envDefault:"x-aigen-key" validate:"required"`
	TargetHeader    string        `env:"OCR_TARGET_HEADER"`
	TargetHeaderKey string        `env:"OCR_TARGET_HEADER_KEY" envDefault:"x-response-target-header" validate:"required"`
	Action          string        `env:"OCR_ACTION" envDefault:"process_document"`
	Channel         string        `env:"OCR_CHANNEL" envDefault:"RPA_AppToOCR"`
	ContentEncoding string        `env:"OCR_CONTENT_ENCODING" envDefault:"binary"`
	ResponseType    string        `env:"OCR_RESPONSE_TYPE" envDefault:"webhook"`
	CallbackURL     string        `env:"OCR_CALLBACK_URL" validate:"omitempty,url"`
	Name            string        `env:"OCR_SERVICE"`
	Timeout         time.Duration `env:"OCR_TIMEOUT" envDefault:"2m" validate:"min=0"`
}

// ExtractionConfig controls the data-extraction pass applied when the
// canonical final-data shape is missing from a payload.
type ExtractionConfig struct {
	Enabled    bool   `env:"DATA_EXTRACTION_ENABLED" envDefault:"false"`
	Path       string `env:"DATA_EXTRACTION_PATH" envDefault:"data.data"`
	WrapInData bool   `env:"DATA_EXTRACTION_WRAP" envDefault:"true"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":3001" validate:"required"`
	GRPCAddr        string        `env:"GRPC_ADDR"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"33554432" validate:"min=1"`
}

// IndexConfig selects the correlation index backend
type IndexConfig struct {
	Driver string `env:"INDEX_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite pgx none"`
	DSN    string `env:"INDEX_DSN"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	File  string `env:"LOG_FILE"`
}

// LoadConfig loads configuration from a .env file (if present) and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "parse environment", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	if c.Dispatch.MaxConcurrent < 1 {
		c.Dispatch.MaxConcurrent = 1
	}
	if c.Dispatch.BatchDelay < 0 {
		c.Dispatch.BatchDelay = 0
	}
	c.Index.Driver = strings.ToLower(strings.TrimSpace(c.Index.Driver))
	if c.Index.Driver == "sqlite" && c.Index.DSN == "" {
		c.Index.DSN = filepath.Join(c.Store.DownloadDir, "index.db")
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	if c.Index.Driver == "pgx" && c.Index.DSN == "" {
		return NewAppError("CONFIG_ERROR", "INDEX_DSN is required for the pgx index", ErrInvalidInput)
	}
	return nil
}

// ValidateDispatch checks the settings only the dispatcher needs.
func (c *Config) ValidateDispatch() error {
	if c.Service.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OCR_BASE_URL is required", ErrInvalidInput)
	}
	if c.Service.CallbackURL == "" {
		return NewAppError("CONFIG_ERROR", "OCR_CALLBACK_URL is required", ErrInvalidInput)
	}
	if c.Service.Name == "" {
		return NewAppError("CONFIG_ERROR", "OCR_SERVICE is required", ErrInvalidInput)
	}
	return nil
}
