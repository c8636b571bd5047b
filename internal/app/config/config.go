// Package config loads service settings from a TOML file, an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"xray_backend/internal/feature/xray/domain/entity"
)

// DefaultPath is used when neither the caller nor XRAY_CONFIG names a file.
const DefaultPath = "config/config.toml"

// Duration accepts Go duration strings ("30s", "24h") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ServerConfig struct {
	Port              string   `toml:"port"`
	LogLevel          string   `toml:"log_level"`  // debug | info | warn | error
	LogFormat         string   `toml:"log_format"` // json | text
	AllowOrigins      []string `toml:"allow_origins"`
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	UploadDir         string   `toml:"upload_dir"` // empty uses the OS temp dir
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
}

// ModelConfig describes the backbone export and the classification head.
type ModelConfig struct {
	BackbonePath     string    `toml:"backbone_path"`
	RuntimeLibrary   string    `toml:"runtime_library"`
	InputName        string    `toml:"input_name"`
	OutputName       string    `toml:"output_name"`
	FeatureShape     []int64   `toml:"feature_shape"` // backbone output without batch, e.g. [1024, 7, 7]
	HeadWeights      string    `toml:"head_weights"`  // JSON file with the linear head
	InputSize        int       `toml:"input_size"`
	Mean             []float32 `toml:"mean"`
	Std              []float32 `toml:"std"`
	FeaturePool      int       `toml:"feature_pool"`      // average pooling kernel after the backbone, 0 or 1 disables it
	ExplanationLayer string    `toml:"explanation_layer"` // empty selects the last feature map
}

// LabelConfig pins a disease name to a classifier output.
type LabelConfig struct {
	Name  string `toml:"name"`
	Index int    `toml:"index"`
}

type AnalysisConfig struct {
	Threshold    float64 `toml:"threshold"`
	DisplaySize  int     `toml:"display_size"` // 0 keeps the original image size
	Workers      int     `toml:"workers"`
	OverlayAlpha float64 `toml:"overlay_alpha"`
	MaxImageSide int     `toml:"max_image_side"` // rejects uploads wider or taller than this
}

type VisionConfig struct {
	Enabled  bool    `toml:"enabled"`
	MinScore float32 `toml:"min_score"`
}

type LLMConfig struct {
	Provider     string   `toml:"provider"` // gemini | openai | claude | ollama
	Model        string   `toml:"model"`
	APIKey       string   `toml:"api_key"`
	BaseURL      string   `toml:"base_url"`
	MaxTokens    int      `toml:"max_tokens"`
	Timeout      Duration `toml:"timeout"`
	RateLimit    int      `toml:"rate_limit"` // requests per rate_interval, 0 disables
	RateInterval Duration `toml:"rate_interval"`
}

type RedisConfig struct {
	Enabled  bool     `toml:"enabled"`
	Host     string   `toml:"host"`
	Port     string   `toml:"port"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL Duration `toml:"cache_ttl"`
}

type DatabaseConfig struct {
	Driver         string   `toml:"driver"` // postgres | sqlite
	Host           string   `toml:"host"`
	Port           string   `toml:"port"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	Name           string   `toml:"name"`
	SSLMode        string   `toml:"sslmode"`
	Path           string   `toml:"path"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	AutoMigrate    bool     `toml:"auto_migrate"`
}

type AuthConfig struct {
	Enabled   bool     `toml:"enabled"`
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Model    ModelConfig    `toml:"model"`
	Labels   []LabelConfig  `toml:"labels"`
	Analysis AnalysisConfig `toml:"analysis"`
	Vision   VisionConfig   `toml:"vision"`
	LLM      LLMConfig      `toml:"llm"`
	Redis    RedisConfig    `toml:"redis"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
}

// Default returns the settings used when no file is present.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              "8080",
			LogLevel:          "info",
			LogFormat:         "json",
			MaxUploadBytes:    16 << 20,
			ReadHeaderTimeout: Duration{10 * time.Second},
			ShutdownTimeout:   Duration{15 * time.Second},
		},
		Model: ModelConfig{
			BackbonePath: "models/densenet121_features.onnx",
			InputName:    "input",
			OutputName:   "features",
			HeadWeights:  "models/classifier_head.json",
			InputSize:    224,
		},
		Analysis: AnalysisConfig{
			Threshold:    0.5,
			Workers:      4,
			OverlayAlpha: 0.4,
			MaxImageSide: 4096,
		},
		Vision: VisionConfig{MinScore: 0.6},
		LLM: LLMConfig{
			Provider:     "gemini",
			MaxTokens:    2048,
			Timeout:      Duration{60 * time.Second},
			RateInterval: Duration{time.Minute},
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			CacheTTL: Duration{24 * time.Hour},
		},
		Database: DatabaseConfig{
			Driver:         "sqlite",
			Host:           "localhost",
			Port:           "5432",
			Path:           "data/users.db",
			ConnectTimeout: Duration{60 * time.Second},
			AutoMigrate:    true,
		},
		Auth: AuthConfig{TokenTTL: Duration{time.Hour}},
	}
	cfg.fillListDefaults()
	return cfg
}

// fillListDefaults sets list-valued settings the file left empty.
func (c *Config) fillListDefaults() {
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:3000"}
	}
	if len(c.Model.FeatureShape) == 0 {
		c.Model.FeatureShape = []int64{1024, 7, 7}
	}
	if len(c.Model.Mean) == 0 {
		c.Model.Mean = []float32{0.485, 0.456, 0.406}
	}
	if len(c.Model.Std) == 0 {
		c.Model.Std = []float32{0.229, 0.224, 0.225}
	}
	if len(c.Labels) == 0 {
		for _, l := range entity.DefaultLabels {
			c.Labels = append(c.Labels, LabelConfig{Name: l.Name, Index: l.OutputIndex})
		}
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads path (or XRAY_CONFIG, or DefaultPath), applies environment overrides and validates.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("XRAY_CONFIG", DefaultPath)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Lists come from the file as a whole, never merged with the defaults.
		cfg.Server.AllowOrigins, cfg.Model.FeatureShape, cfg.Model.Mean, cfg.Model.Std, cfg.Labels = nil, nil, nil, nil, nil
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML %s: %w", path, err)
		}
		cfg.fillListDefaults()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)

	c.Model.BackbonePath = getEnv("ONNX_MODEL_PATH", c.Model.BackbonePath)
	c.Model.RuntimeLibrary = getEnv("ONNXRUNTIME_LIB", c.Model.RuntimeLibrary)
	c.Model.HeadWeights = getEnv("HEAD_WEIGHTS_PATH", c.Model.HeadWeights)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("GEMINI_API_KEY", c.LLM.APIKey))
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)

	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.AutoMigrate = getEnvAsBool("RUN_MIGRATIONS", c.Database.AutoMigrate)

	c.Auth.Enabled = getEnvAsBool("AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
}

// Validate rejects settings no component could run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Threshold < 0 || c.Analysis.Threshold > 1 {
		errs = append(errs, fmt.Errorf("analysis.threshold %v is outside [0,1]", c.Analysis.Threshold))
	}
	if c.Analysis.Workers < 1 {
		errs = append(errs, fmt.Errorf("analysis.workers must be at least 1"))
	}
	if c.Analysis.DisplaySize < 0 {
		errs = append(errs, fmt.Errorf("analysis.display_size must not be negative"))
	}
	if c.Analysis.MaxImageSide < 1 {
		errs = append(errs, fmt.Errorf("analysis.max_image_side must be at least 1"))
	}
	if c.Analysis.DisplaySize > c.Analysis.MaxImageSide {
		errs = append(errs, fmt.Errorf("analysis.display_size %d exceeds analysis.max_image_side %d", c.Analysis.DisplaySize, c.Analysis.MaxImageSide))
	}
	if c.Analysis.OverlayAlpha < 0 || c.Analysis.OverlayAlpha > 1 {
		errs = append(errs, fmt.Errorf("analysis.overlay_alpha %v is outside [0,1]", c.Analysis.OverlayAlpha))
	}
	if c.Model.FeaturePool < 0 {
		errs = append(errs, fmt.Errorf("model.feature_pool must not be negative"))
	}
	if c.Model.InputSize <= 0 {
		errs = append(errs, fmt.Errorf("model.input_size must be positive"))
	}
	if len(c.Model.Mean) != 3 || len(c.Model.Std) != 3 {
		errs = append(errs, fmt.Errorf("model.mean and model.std need 3 values"))
	}
	if len(c.Model.FeatureShape) != 3 {
		errs = append(errs, fmt.Errorf("model.feature_shape %v is not [C, H, W]", c.Model.FeatureShape))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive"))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required when auth is enabled"))
	}
	if err := c.LabelSet().Validate(maxIndex(c.Labels) + 1); err != nil {
		errs = append(errs, fmt.Errorf("labels: %w", err))
	}
	return errors.Join(errs...)
}

// LabelSet converts the configured labels in file order.
func (c *Config) LabelSet() entity.LabelSet {
	out := make(entity.LabelSet, len(c.Labels))
	for i, l := range c.Labels {
		out[i] = entity.Label{Name: l.Name, OutputIndex: l.Index}
	}
	return out
}

// MeanStd returns the normalization statistics as fixed-size arrays. Validate guarantees the length.
func (m ModelConfig) MeanStd() (mean, std [3]float32) {
	copy(mean[:], m.Mean)
	copy(std[:], m.Std)
	return mean, std
}

// maxIndex bounds the width check here; the classifier repeats it against the loaded head.
func maxIndex(ls []LabelConfig) int {
	hi := 0
	for _, l := range ls {
		hi = max(hi, l.Index)
	}
	return hi
}
