// Package yolo runs a YOLO classification network (an ONNX export of a
// yolo*-cls model) locally through OpenCV's DNN module.
package yolo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/teslashibe/go-inspect/pkg/classify"
	"github.com/teslashibe/go-inspect/pkg/frame"
	"gocv.io/x/gocv"
)

// ErrLowConfidence is returned when the top-1 score is below the threshold.
var ErrLowConfidence = errors.New("yolo: no confident prediction")

// Config holds classifier configuration.
type Config struct {
	ModelPath     string  // ONNX model exported with `yolo export format=onnx`
	LabelsPath    string  // One class name per line, in model index order
	InputSize     int     // Square network input, 224 for yolo*-cls
	MinConfidence float32 // Top-1 probability below this is rejected
}

// DefaultConfig returns defaults for a yolo11n-cls export.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/yolo11n-cls.onnx",
		LabelsPath:    "models/yolo11n-cls.labels",
		InputSize:     224,
		MinConfidence: 0.25,
	}
}

// Classifier is a local image classifier.
type Classifier struct {
	net    gocv.Net
	config Config
	labels []string
	mu     sync.Mutex
}

// New loads the model and its labels.
func New(cfg Config) (*Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("yolo: model file not found: %s", cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 224
	}

	labels, err := readLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Classifier{net: net, config: cfg, labels: labels}, nil
}

// Classify returns the top-1 class name for f.
func (c *Classifier) Classify(ctx context.Context, f *frame.Frame) (string, error) {
	if f == nil {
		return "", classify.ErrNoFrame
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return "", fmt.Errorf("yolo: decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return "", fmt.Errorf("yolo: empty image")
	}

	size := image.Pt(c.config.InputSize, c.config.InputSize)
	// Resize the short side then center-crop, matching ultralytics' cls transforms.
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, true)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	scores, err := output.DataPtrFloat32()
	if err != nil {
		return "", fmt.Errorf("yolo: read output: %w", err)
	}

	idx, score := top1(scores)
	if idx < 0 || score < c.config.MinConfidence {
		return "", ErrLowConfidence
	}
	if idx >= len(c.labels) {
		return "", fmt.Errorf("yolo: class index %d outside %d labels", idx, len(c.labels))
	}
	return c.labels[idx], nil
}

// Close releases the network.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

// top1 returns the index and value of the highest score, -1 when empty.
func top1(scores []float32) (int, float32) {
	best, bestScore := -1, float32(0)
	for i, s := range scores {
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}

func readLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("yolo: open labels: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("yolo: read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("yolo: no labels in %s", path)
	}
	return labels, nil
}

// Verify Classifier implements classify.Classifier at compile time.
var _ classify.Classifier = (*Classifier)(nil)
