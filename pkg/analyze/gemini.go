package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-inspect/internal/httpc"
	"github.com/teslashibe/go-inspect/pkg/frame"
)

const providerGemini = "gemini"

// Gemini analyzes frames with Google's Gemini API, streaming the answer
// over server-sent events.
// Gemini uses a different API format than OpenAI, so we implement it directly.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini analyzer.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.5-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   httpc.NewClient(0),
		logger: cfg.Logger.With("component", "analyze.gemini"),
	}, nil
}

// Analyze streams the verdict and returns the concatenated text.
func (g *Gemini) Analyze(ctx context.Context, label string, f *frame.Frame) (string, error) {
	start := time.Now()

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	stream, err := g.AnalyzeStream(ctx, label, f)
	if err != nil {
		return "", err
	}

	verdict, err := Collect(stream)
	if err != nil {
		return "", err
	}
	if verdict == "" {
		return "", WrapError(providerGemini, ErrEmptyVerdict)
	}

	g.logger.Debug("analysis complete",
		"label", label,
		"verdict", verdict,
		"latency_ms", time.Since(start).Milliseconds())
	return verdict, nil
}

// AnalyzeStream starts a streamGenerateContent call.
func (g *Gemini) AnalyzeStream(ctx context.Context, label string, f *frame.Frame) (Stream, error) {
	if f == nil {
		return nil, WrapError(providerGemini, ErrNoFrame)
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]interface{}{{"text": g.config.Prompt}},
			},
			{
				"role": "model",
				"parts": []map[string]interface{}{
					{"text": acknowledgement},
					{"text": awaitingImage},
				},
			},
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": imageTurn(label)},
					{"inline_data": map[string]string{
						"mime_type": "image/jpeg",
						"data":      f.Base64(),
					}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "text/plain",
			"temperature":      g.config.Temperature,
			"maxOutputTokens":  g.config.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", strings.TrimSuffix(g.config.BaseURL, "/"), g.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, g.parseError(resp)
	}

	g.logger.Debug("analysis started", "model", g.config.Model, "label", label)
	return &geminiStream{sse: newSSEReader(resp.Body), logger: g.logger}, nil
}

// Close releases idle connections.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerGemini,
	}
}

// geminiStream implements Stream over streamGenerateContent SSE events.
type geminiStream struct {
	sse    *sseReader
	logger *slog.Logger
	done   bool
}

// Recv returns the text carried by the next event.
func (s *geminiStream) Recv() (*Chunk, error) {
	if s.done {
		return &Chunk{Done: true}, nil
	}

	for {
		data, err := s.sse.next()
		if errors.Is(err, io.EOF) {
			s.done = true
			return &Chunk{Done: true}, nil
		}
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("read stream: %w", err))
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			s.logger.Debug("skipping malformed event", "error", err)
			continue
		}

		if event.Error.Message != "" {
			return nil, &APIError{
				StatusCode: event.Error.Code,
				Message:    event.Error.Message,
				Provider:   providerGemini,
			}
		}

		if len(event.Candidates) == 0 {
			continue
		}

		var delta strings.Builder
		for _, part := range event.Candidates[0].Content.Parts {
			delta.WriteString(part.Text)
		}
		s.logger.Debug("analysis chunk", "text", delta.String())

		return &Chunk{
			Delta:        delta.String(),
			FinishReason: event.Candidates[0].FinishReason,
		}, nil
	}
}

// Close stops the stream.
func (s *geminiStream) Close() error {
	s.done = true
	return s.sse.close()
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements StreamAnalyzer at compile time.
var _ StreamAnalyzer = (*Gemini)(nil)
