package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-inspect/internal/config"
	"github.com/teslashibe/go-inspect/internal/log"
	"github.com/teslashibe/go-inspect/pkg/analyze"
	"github.com/teslashibe/go-inspect/pkg/classify"
	"github.com/teslashibe/go-inspect/pkg/classify/yolo"
	"github.com/teslashibe/go-inspect/pkg/frame"
	"github.com/teslashibe/go-inspect/pkg/frame/webcam"
	"github.com/teslashibe/go-inspect/pkg/scheduler"
)

// pipeline holds the three collaborators built from config.
type pipeline struct {
	source     frame.Source
	classifier classify.Classifier
	analyzer   analyze.Analyzer
	closers    []io.Closer
}

// Close releases model and connection resources. The frame source is
// owned by the scheduler.
func (p *pipeline) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadConfig loads and validates the config named by --config and
// initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Init(cfg.Log.Level)
	return cfg, log.L(), nil
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{}

	src, err := buildSource(cfg.Source)
	if err != nil {
		return nil, err
	}
	p.source = src

	cls, err := buildClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	p.classifier = cls
	if c, ok := cls.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	an, err := buildAnalyzer(cfg.Analyzer, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.analyzer = an
	if c, ok := an.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}

	logger.Info("pipeline ready",
		"source", cfg.Source.Type,
		"classifier", cfg.Classifier.Type,
		"analyzer", cfg.Analyzer.Provider)
	return p, nil
}

func buildSource(cfg config.SourceConfig) (frame.Source, error) {
	switch cfg.Type {
	case config.SourceWebcam:
		return webcam.New(webcam.Config{
			Device:    cfg.Device,
			Width:     cfg.Width,
			Height:    cfg.Height,
			ZoomLevel: cfg.Zoom,
			Quality:   cfg.Quality,
			Warmup:    cfg.Warmup,
		}), nil
	case config.SourceHTTP:
		return frame.NewHTTPSource(cfg.URL, nil), nil
	case config.SourceCommand:
		return frame.NewCommandSource(cfg.Command[0], cfg.Command[1:]...), nil
	case config.SourceDir:
		return frame.NewDirSource(nil, cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

func buildClassifier(cfg config.ClassifierConfig) (classify.Classifier, error) {
	switch cfg.Type {
	case config.ClassifierYOLO:
		return yolo.New(yolo.Config{
			ModelPath:     cfg.ModelPath,
			LabelsPath:    cfg.LabelsPath,
			InputSize:     cfg.InputSize,
			MinConfidence: float32(cfg.MinConfidence),
		})
	case config.ClassifierHTTP:
		return classify.NewHTTP(cfg.URL, nil), nil
	case config.ClassifierCommand:
		return classify.NewCommand(cfg.Command[0], cfg.Command[1:]), nil
	default:
		return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}
}

func buildAnalyzer(cfg config.AnalyzerConfig, logger *slog.Logger) (analyze.Analyzer, error) {
	opts := []analyze.Option{
		analyze.WithMaxTokens(cfg.MaxTokens),
		analyze.WithTemperature(cfg.Temperature),
		analyze.WithTimeout(cfg.Timeout),
		analyze.WithLogger(logger),
	}
	if cfg.APIKey != "" {
		opts = append(opts, analyze.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, analyze.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, analyze.WithModel(cfg.Model))
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return analyze.NewGemini(opts...)
	case config.ProviderOpenAI:
		return analyze.NewOpenAI(opts...)
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
	}
}

func schedulerOptions(cfg config.SchedulerConfig, logger *slog.Logger) []scheduler.Option {
	return []scheduler.Option{
		scheduler.WithInitialDelay(cfg.InitialDelay),
		scheduler.WithInterval(cfg.Interval),
		scheduler.WithCaptureTimeout(cfg.CaptureTimeout),
		scheduler.WithClassifyTimeout(cfg.ClassifyTimeout),
		scheduler.WithAnalyzeTimeout(cfg.AnalyzeTimeout),
		scheduler.WithLogger(logger),
	}
}
