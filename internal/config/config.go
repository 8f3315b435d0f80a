// Package config loads go-inspect configuration from defaults, an optional
// YAML file and INSPECT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// INSPECT_SCHEDULER_INTERVAL=15s or INSPECT_SOURCE_TYPE=http.
const EnvPrefix = "INSPECT"

// Source types.
const (
	SourceWebcam  = "webcam"
	SourceHTTP    = "http"
	SourceCommand = "command"
	SourceDir     = "dir"
)

// Classifier types.
const (
	ClassifierYOLO    = "yolo"
	ClassifierHTTP    = "http"
	ClassifierCommand = "command"
)

// Analyzer providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the complete application configuration.
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Source     SourceConfig     `mapstructure:"source"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Web        WebConfig        `mapstructure:"web"`
	Log        LogConfig        `mapstructure:"log"`
}

// SchedulerConfig holds capture loop timings.
type SchedulerConfig struct {
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	Interval        time.Duration `mapstructure:"interval"`
	CaptureTimeout  time.Duration `mapstructure:"capture_timeout"`
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
	AnalyzeTimeout  time.Duration `mapstructure:"analyze_timeout"`
	LogCapacity     int           `mapstructure:"log_capacity"` // 0 keeps every scan
	Autostart       bool          `mapstructure:"autostart"`
}

// SourceConfig selects and configures the frame source.
type SourceConfig struct {
	Type string `mapstructure:"type"` // webcam, http, command, dir

	// webcam
	Device  int     `mapstructure:"device"`
	Width   int     `mapstructure:"width"`
	Height  int     `mapstructure:"height"`
	Zoom    float64 `mapstructure:"zoom"`
	Quality int     `mapstructure:"quality"`
	Warmup  int     `mapstructure:"warmup"`

	URL     string   `mapstructure:"url"`     // http
	Command []string `mapstructure:"command"` // command
	Dir     string   `mapstructure:"dir"`     // dir
}

// ClassifierConfig selects and configures the first-stage classifier.
type ClassifierConfig struct {
	Type string `mapstructure:"type"` // yolo, http, command

	// yolo
	ModelPath     string  `mapstructure:"model_path"`
	LabelsPath    string  `mapstructure:"labels_path"`
	InputSize     int     `mapstructure:"input_size"`
	MinConfidence float64 `mapstructure:"min_confidence"`

	URL     string   `mapstructure:"url"`     // http base URL
	Command []string `mapstructure:"command"` // command; the frame path is appended
}

// AnalyzerConfig configures the vision model.
type AnalyzerConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini, openai
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// WebConfig configures the HTTP control surface.
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// DefaultConfig returns a new configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			InitialDelay:    3 * time.Second,
			Interval:        10 * time.Second,
			CaptureTimeout:  5 * time.Second,
			ClassifyTimeout: 20 * time.Second,
			AnalyzeTimeout:  60 * time.Second,
			LogCapacity:     1000,
		},
		Source: SourceConfig{
			Type:    SourceWebcam,
			Width:   1280,
			Height:  720,
			Zoom:    2.0,
			Quality: 85,
			Warmup:  5,
		},
		Classifier: ClassifierConfig{
			Type:          ClassifierYOLO,
			ModelPath:     "models/yolo11n-cls.onnx",
			LabelsPath:    "models/yolo11n-cls.labels",
			InputSize:     224,
			MinConfidence: 0.25,
			Command:       []string{"python", "run_yolo.py"},
		},
		Analyzer: AnalyzerConfig{
			Provider:    ProviderGemini,
			MaxTokens:   256,
			Temperature: 0.2,
			Timeout:     90 * time.Second,
		},
		Web: WebConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the OS filesystem. An empty path searches
// for inspect.yaml in the working directory and $HOME/.config/go-inspect.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load on an arbitrary filesystem.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("inspect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/go-inspect")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Analyzer.APIKey == "" {
		cfg.Analyzer.APIKey = ProviderAPIKey(cfg.Analyzer.Provider)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	s := c.Scheduler
	if s.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("scheduler.initial_delay must not be negative"))
	}
	if s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive"))
	}
	if s.LogCapacity < 0 {
		errs = append(errs, fmt.Errorf("scheduler.log_capacity must not be negative"))
	}

	switch c.Source.Type {
	case SourceWebcam:
	case SourceHTTP:
		if c.Source.URL == "" {
			errs = append(errs, fmt.Errorf("source.url is required for the http source"))
		}
	case SourceCommand:
		if len(c.Source.Command) == 0 {
			errs = append(errs, fmt.Errorf("source.command is required for the command source"))
		}
	case SourceDir:
		if c.Source.Dir == "" {
			errs = append(errs, fmt.Errorf("source.dir is required for the dir source"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid source type: %q (must be webcam, http, command or dir)", c.Source.Type))
	}

	switch c.Classifier.Type {
	case ClassifierYOLO:
		if c.Classifier.ModelPath == "" {
			errs = append(errs, fmt.Errorf("classifier.model_path is required for yolo"))
		}
	case ClassifierHTTP:
		if c.Classifier.URL == "" {
			errs = append(errs, fmt.Errorf("classifier.url is required for the http classifier"))
		}
	case ClassifierCommand:
		if len(c.Classifier.Command) == 0 {
			errs = append(errs, fmt.Errorf("classifier.command is required for the command classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid classifier type: %q (must be yolo, http or command)", c.Classifier.Type))
	}

	switch c.Analyzer.Provider {
	case ProviderGemini:
		if c.Analyzer.APIKey == "" {
			errs = append(errs, fmt.Errorf("gemini requires an API key (GEMINI_API_KEY or %s_ANALYZER_API_KEY)", EnvPrefix))
		}
	case ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("invalid analyzer provider: %q (must be gemini or openai)", c.Analyzer.Provider))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("scheduler.initial_delay", d.Scheduler.InitialDelay)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("scheduler.capture_timeout", d.Scheduler.CaptureTimeout)
	v.SetDefault("scheduler.classify_timeout", d.Scheduler.ClassifyTimeout)
	v.SetDefault("scheduler.analyze_timeout", d.Scheduler.AnalyzeTimeout)
	v.SetDefault("scheduler.log_capacity", d.Scheduler.LogCapacity)
	v.SetDefault("scheduler.autostart", d.Scheduler.Autostart)

	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("source.device", d.Source.Device)
	v.SetDefault("source.width", d.Source.Width)
	v.SetDefault("source.height", d.Source.Height)
	v.SetDefault("source.zoom", d.Source.Zoom)
	v.SetDefault("source.quality", d.Source.Quality)
	v.SetDefault("source.warmup", d.Source.Warmup)
	v.SetDefault("source.url", d.Source.URL)
	v.SetDefault("source.command", d.Source.Command)
	v.SetDefault("source.dir", d.Source.Dir)

	v.SetDefault("classifier.type", d.Classifier.Type)
	v.SetDefault("classifier.model_path", d.Classifier.ModelPath)
	v.SetDefault("classifier.labels_path", d.Classifier.LabelsPath)
	v.SetDefault("classifier.input_size", d.Classifier.InputSize)
	v.SetDefault("classifier.min_confidence", d.Classifier.MinConfidence)
	v.SetDefault("classifier.url", d.Classifier.URL)
	v.SetDefault("classifier.command", d.Classifier.Command)

	v.SetDefault("analyzer.provider", d.Analyzer.Provider)
	v.SetDefault("analyzer.base_url", d.Analyzer.BaseURL)
	v.SetDefault("analyzer.api_key", d.Analyzer.APIKey)
	v.SetDefault("analyzer.model", d.Analyzer.Model)
	v.SetDefault("analyzer.max_tokens", d.Analyzer.MaxTokens)
	v.SetDefault("analyzer.temperature", d.Analyzer.Temperature)
	v.SetDefault("analyzer.timeout", d.Analyzer.Timeout)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.addr", d.Web.Addr)

	v.SetDefault("log.level", d.Log.Level)
}
