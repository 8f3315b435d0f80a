package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teslashibe/go-inspect/internal/httpc"
	"github.com/teslashibe/go-inspect/pkg/frame"
)

// ClassifyPath is the endpoint served by the edge classifier service.
const ClassifyPath = "/api/classify"

// HTTPClassifier calls a classifier service that accepts
// {"base64Image": "..."} and answers {"classification": "..."}.
type HTTPClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTP creates a remote classifier client. A nil client uses httpc.Client.
func NewHTTP(baseURL string, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = httpc.Client
	}
	return &HTTPClassifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type classifyRequest struct {
	Base64Image string `json:"base64Image"`
}

type classifyResponse struct {
	Classification string `json:"classification"`
	Error          string `json:"error"`
}

// Classify posts the frame and returns the raw classification text.
func (c *HTTPClassifier) Classify(ctx context.Context, f *frame.Frame) (string, error) {
	if f == nil {
		return "", ErrNoFrame
	}

	body, err := json.Marshal(classifyRequest{Base64Image: f.Base64()})
	if err != nil {
		return "", fmt.Errorf("classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ClassifyPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("classify: read response: %w", err)
	}

	var result classifyResponse
	decodeErr := json.Unmarshal(data, &result)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		if decodeErr == nil && result.Error != "" {
			msg = result.Error
		}
		return "", &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("classify: decode response: %w", decodeErr)
	}
	if strings.TrimSpace(result.Classification) == "" {
		return "", ErrEmptyLabel
	}
	return result.Classification, nil
}

// Verify HTTPClassifier implements Classifier at compile time.
var _ Classifier = (*HTTPClassifier)(nil)
