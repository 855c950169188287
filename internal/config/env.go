package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/markdave123-py/docpipe/internal/core"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageGCS   = "gcs"

	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"

	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Storage  StorageConfig
	LLM      LLMConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Log      LogConfig
}

type StorageConfig struct {
	Type          string `validate:"oneof=local s3 gcs"`
	LocalBasePath string
	S3Bucket      string
	AwsRegion     string
	AwsAccessKey  string
	AwsSecretKey  string
	GCSBucket     string
}

type LLMConfig struct {
	Provider        string        `validate:"oneof=openai azure gemini"`
	APIKey          string
	BaseURL         string        `validate:"omitempty,url"`
	Model           string        `validate:"required"`
	Temperature     float32       `validate:"gte=0,lte=2"`
	MaxTokens       int           `validate:"gte=0"`
	Timeout         time.Duration
	AzureEndpoint   string        `validate:"omitempty,url"`
	AzureDeployment string
	AzureAPIVersion string
	GeminiAPIKey    string
	GenModel        string
}

type DatabaseConfig struct {
	Backend     string `validate:"oneof=duckdb postgres sqlite"`
	DuckDBPath  string
	SQLitePath  string
	DatabaseURL string
}

type PipelineConfig struct {
	InputFolder      string `validate:"required"`
	ExtractOutput    string `validate:"required"`
	StructuredOutput string `validate:"required"`
	Extension        string `validate:"required,startswith=."`
	PromptDir        string
	PromptStage      string `validate:"required"`
	PromptSection    string `validate:"required"`
	TableName        string `validate:"required"`
	LLMConcurrency   int    `validate:"gte=1,lte=32"`
	ExportXLSX       bool
	ReportFolder     string
}

type ServerConfig struct {
	Port      string
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Format string `validate:"oneof=json text"`
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Storage: StorageConfig{
			Type:          strings.ToLower(getEnv("STORAGE_TYPE", StorageLocal)),
			LocalBasePath: getEnv("LOCAL_STORAGE_PATH", ""),
			S3Bucket:      getEnv("S3_BUCKET_NAME", ""),
			AwsRegion:     getEnv("AWS_REGION", "us-east-1"),
			AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
			AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
			GCSBucket:     getEnv("GCS_BUCKET_NAME", ""),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:           getEnv("OPENAI_MODEL", "gpt-4"),
			Temperature:     getEnvFloat32("OPENAI_TEMPERATURE", 0),
			MaxTokens:       getEnvInt("OPENAI_MAX_TOKENS", 1000),
			Timeout:         getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
			AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		},
		Database: DatabaseConfig{
			Backend:     strings.ToLower(getEnv("DB_BACKEND", BackendDuckDB)),
			DuckDBPath:  getEnv("DUCKDB_PATH", ""),
			SQLitePath:  getEnv("SQLITE_PATH", ""),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Pipeline: PipelineConfig{
			InputFolder:      getEnv("PIPELINE_INPUT_FOLDER", "raw"),
			ExtractOutput:    getEnv("PIPELINE_EXTRACT_OUTPUT", "s1_extract_pdf_text"),
			StructuredOutput: getEnv("PIPELINE_STRUCTURED_OUTPUT", "s2_structured_info"),
			Extension:        getEnv("PIPELINE_EXTENSION", ".pdf"),
			PromptDir:        getEnv("PROMPT_CONFIG_DIR", ""),
			PromptStage:      getEnv("PROMPT_STAGE", "s2_structured_info"),
			PromptSection:    getEnv("PROMPT_SECTION", "paper_information_extraction"),
			TableName:        getEnv("PIPELINE_TABLE", "documents"),
			LLMConcurrency:   getEnvInt("LLM_CONCURRENCY", 1),
			ExportXLSX:       getEnvBool("EXPORT_XLSX", false),
			ReportFolder:     getEnv("PIPELINE_REPORT_FOLDER", "reports"),
		},
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if cfg.LLM.Provider == ProviderAzure {
		cfg.LLM.APIKey = getEnv("AZURE_OPENAI_API_KEY", cfg.LLM.APIKey)
	}
	return cfg
}

var validate = validator.New()

// Validate checks field ranges and the cross-field rules that pick exactly one
// storage backend, one LLM vendor and one database.
func (c *Config) Validate() error {
	return c.ValidateFor(true, true)
}

// ValidateFor checks storage, pipeline and logging settings, plus the LLM and
// database sections only when the run will open them.
func (c *Config) ValidateFor(needLLM, needDB bool) error {
	sections := []struct {
		name string
		v    any
	}{
		{"Storage", c.Storage},
		{"LLM", c.LLM},
		{"Database", c.Database},
		{"Pipeline", c.Pipeline},
		{"Log", c.Log},
	}
	for _, sec := range sections {
		if (sec.name == "LLM" && !needLLM) || (sec.name == "Database" && !needDB) {
			continue
		}
		if err := validateSection(sec.name, sec.v); err != nil {
			return err
		}
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if needLLM {
		if err := c.LLM.validate(); err != nil {
			return err
		}
	}
	if needDB {
		return c.Database.validate()
	}
	return nil
}

func validateSection(name string, v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			key := fmt.Sprintf("Config.%s.%s", name, fe.Field())
			return core.NewConfigError(key, fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()))
		}
		return &core.ConfigError{Message: "invalid configuration", Cause: err}
	}
	return nil
}

func (s StorageConfig) validate() error {
	set := map[string]bool{
		StorageLocal: s.LocalBasePath != "",
		StorageS3:    s.S3Bucket != "",
		StorageGCS:   s.GCSBucket != "",
	}
	keys := map[string]string{
		StorageLocal: "LOCAL_STORAGE_PATH",
		StorageS3:    "S3_BUCKET_NAME",
		StorageGCS:   "GCS_BUCKET_NAME",
	}
	if !set[s.Type] {
		return core.NewConfigError(keys[s.Type], fmt.Sprintf("must be provided for %s storage", s.Type))
	}
	for typ, ok := range set {
		if typ != s.Type && ok {
			return core.NewConfigError(keys[typ], fmt.Sprintf("conflicts with STORAGE_TYPE=%s", s.Type))
		}
	}
	return nil
}

func (l LLMConfig) validate() error {
	switch l.Provider {
	case ProviderOpenAI:
		if l.APIKey == "" {
			return core.NewConfigError("OPENAI_API_KEY", "is required for the openai provider")
		}
	case ProviderAzure:
		if l.APIKey == "" {
			return core.NewConfigError("AZURE_OPENAI_API_KEY", "is required for the azure provider")
		}
		if l.AzureEndpoint == "" {
			return core.NewConfigError("AZURE_OPENAI_ENDPOINT", "is required for the azure provider")
		}
		if l.AzureDeployment == "" {
			return core.NewConfigError("AZURE_OPENAI_DEPLOYMENT", "is required for the azure provider")
		}
	case ProviderGemini:
		if l.GeminiAPIKey == "" {
			return core.NewConfigError("GEMINI_API_KEY", "is required for the gemini provider")
		}
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Backend {
	case BackendDuckDB:
		if d.DuckDBPath == "" {
			return core.NewConfigError("DUCKDB_PATH", "must be provided for the duckdb backend")
		}
	case BackendSQLite:
		if d.SQLitePath == "" {
			return core.NewConfigError("SQLITE_PATH", "must be provided for the sqlite backend")
		}
	case BackendPostgres:
		if d.DatabaseURL == "" {
			return core.NewConfigError("DATABASE_URL", "must be provided for the postgres backend")
		}
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat32(key string, def float32) float32 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		slog.Warn("env value is not a float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return float32(f)
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
