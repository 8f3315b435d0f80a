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

const providerOpenAI = "openai"

// OpenAI analyzes frames with any OpenAI-compatible chat completions API
// (OpenAI, Ollama, vLLM, Together, Groq, etc.), streaming the answer.
type OpenAI struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible analyzer. The API key is optional
// for local providers.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://api.openai.com/v1"
	cfg.Model = "gpt-4o-mini"
	cfg.Apply(opts...)

	return &OpenAI{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    httpc.NewClient(0),
		logger:  cfg.Logger.With("component", "analyze.openai"),
	}, nil
}

// Analyze streams the verdict and returns the concatenated text.
func (o *OpenAI) Analyze(ctx context.Context, label string, f *frame.Frame) (string, error) {
	start := time.Now()

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	stream, err := o.AnalyzeStream(ctx, label, f)
	if err != nil {
		return "", err
	}

	verdict, err := Collect(stream)
	if err != nil {
		return "", err
	}
	if verdict == "" {
		return "", WrapError(providerOpenAI, ErrEmptyVerdict)
	}

	o.logger.Debug("analysis complete",
		"label", label,
		"verdict", verdict,
		"latency_ms", time.Since(start).Milliseconds())
	return verdict, nil
}

// AnalyzeStream starts a streaming chat completion.
func (o *OpenAI) AnalyzeStream(ctx context.Context, label string, f *frame.Frame) (Stream, error) {
	if f == nil {
		return nil, WrapError(providerOpenAI, ErrNoFrame)
	}

	payload := map[string]interface{}{
		"model":  o.config.Model,
		"stream": true,
		"messages": []map[string]interface{}{
			{"role": "system", "content": o.config.Prompt},
			{"role": "assistant", "content": acknowledgement + "\n" + awaitingImage},
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": imageTurn(label)},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url": "data:image/jpeg;base64," + f.Base64(),
						},
					},
				},
			},
		},
		"max_tokens": o.config.MaxTokens,
	}
	if o.config.Temperature > 0 {
		payload["temperature"] = o.config.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, o.parseError(resp)
	}

	return &openAIStream{sse: newSSEReader(resp.Body)}, nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (o *OpenAI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerOpenAI,
	}
}

// openAIStream implements Stream for chat completion SSE responses.
type openAIStream struct {
	sse  *sseReader
	done bool
}

// Recv returns the next stream chunk.
func (s *openAIStream) Recv() (*Chunk, error) {
	if s.done {
		return &Chunk{Done: true}, nil
	}

	for {
		data, err := s.sse.next()
		if errors.Is(err, io.EOF) || data == "[DONE]" {
			s.done = true
			return &Chunk{Done: true}, nil
		}
		if err != nil {
			return nil, WrapError(providerOpenAI, fmt.Errorf("read stream: %w", err))
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events
			continue
		}

		if len(event.Choices) == 0 {
			continue
		}

		choice := event.Choices[0]
		return &Chunk{
			Delta:        choice.Delta.Content,
			FinishReason: choice.FinishReason,
		}, nil
	}
}

// Close stops the stream.
func (s *openAIStream) Close() error {
	s.done = true
	return s.sse.close()
}

// streamEvent is the SSE event format.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Verify OpenAI implements StreamAnalyzer at compile time.
var _ StreamAnalyzer = (*OpenAI)(nil)
