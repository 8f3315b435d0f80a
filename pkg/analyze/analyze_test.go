package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-inspect/pkg/frame"
)

func TestCollectConcatenatesAndTrims(t *testing.T) {
	s := NewSliceStream("  Defect", " ", "Present\n")

	verdict, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "Defect Present", verdict)

	_, err = s.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed, "Collect closes the stream")
}

func TestCollectEmptyStream(t *testing.T) {
	verdict, err := Collect(NewSliceStream())
	require.NoError(t, err)
	assert.Empty(t, verdict)
}

type failingStream struct{ closed bool }

func (s *failingStream) Recv() (*Chunk, error) { return nil, errors.New("connection reset") }
func (s *failingStream) Close() error          { s.closed = true; return nil }

func TestCollectPropagatesError(t *testing.T) {
	s := &failingStream{}
	_, err := Collect(s)
	assert.EqualError(t, err, "connection reset")
	assert.True(t, s.closed)
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in   string
		want Outcome
	}{
		{"Defect Present", OutcomeDefectPresent},
		{"defect present", OutcomeDefectPresent},
		{"  **Defect  Present**.\n", OutcomeDefectPresent},
		{"No Defect", OutcomeNoDefect},
		{"\"no defect\"", OutcomeNoDefect},
		{"`No Defect`", OutcomeNoDefect},
		{"The object has a defect", OutcomeUnrecognized},
		{"", OutcomeUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutcome(tt.in))
		})
	}
}

func TestOutcomeText(t *testing.T) {
	b, err := json.Marshal(map[string]Outcome{"o": OutcomeNoDefect})
	require.NoError(t, err)
	assert.JSONEq(t, `{"o":"no_defect"}`, string(b))
	assert.Equal(t, "unrecognized", Outcome(42).String())

	var back map[string]Outcome
	require.NoError(t, json.Unmarshal([]byte(`{"a":"defect_present","b":"no_defect","c":"???"}`), &back))
	assert.Equal(t, map[string]Outcome{
		"a": OutcomeDefectPresent,
		"b": OutcomeNoDefect,
		"c": OutcomeUnrecognized,
	}, back)
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status       int
		retryable    bool
		unauthorized bool
	}{
		{429, true, false},
		{503, true, false},
		{401, false, true},
		{403, false, true},
		{400, false, false},
	}
	for _, tt := range tests {
		e := &APIError{StatusCode: tt.status, Provider: "test"}
		assert.Equal(t, tt.retryable, e.IsRetryable(), "status %d", tt.status)
		assert.Equal(t, tt.unauthorized, e.IsUnauthorized(), "status %d", tt.status)
	}
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError("gemini", nil))

	err := WrapError("gemini", ErrNoAPIKey)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Contains(t, err.Error(), "[gemini]")
}

func sseEvents(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, e := range events {
		fmt.Fprintf(w, "data: %s\n\n", e)
	}
}

func geminiEvent(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestGeminiAnalyze(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		sseEvents(w,
			geminiEvent("Defect"),
			"not json",
			geminiEvent(" Present"),
			geminiEvent("\n"),
		)
	}))
	defer server.Close()

	g, err := NewGemini(
		WithBaseURL(server.URL),
		WithAPIKey("test-key"),
		WithModel("gemini-test"),
	)
	require.NoError(t, err)
	defer g.Close()

	verdict, err := g.Analyze(context.Background(), "Bolt", frame.TestFrame())
	require.NoError(t, err)
	assert.Equal(t, "Defect Present", verdict)

	contents, ok := body["contents"].([]interface{})
	require.True(t, ok)
	require.Len(t, contents, 3)
	last := contents[2].(map[string]interface{})
	parts := last["parts"].([]interface{})
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]interface{})["text"], "Bolt")
	inline := parts[1].(map[string]interface{})["inline_data"].(map[string]interface{})
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.Equal(t, frame.TestFrame().Base64(), inline["data"])
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGeminiNilFrame(t *testing.T) {
	g, err := NewGemini(WithAPIKey("k"))
	require.NoError(t, err)
	_, err = g.Analyze(context.Background(), "Bolt", nil)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestGeminiStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted"}}`))
	}))
	defer server.Close()

	g, err := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	require.NoError(t, err)

	_, err = g.Analyze(context.Background(), "Bolt", frame.TestFrame())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Equal(t, "quota exhausted", apiErr.Message)
	assert.True(t, apiErr.IsRateLimited())
}

func TestGeminiEventError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseEvents(w,
			geminiEvent("No"),
			`{"error":{"code":500,"message":"internal"}}`,
		)
	}))
	defer server.Close()

	g, err := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	require.NoError(t, err)

	_, err = g.Analyze(context.Background(), "Bolt", frame.TestFrame())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
}

func TestGeminiEmptyVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseEvents(w, geminiEvent("  "))
	}))
	defer server.Close()

	g, err := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	require.NoError(t, err)

	_, err = g.Analyze(context.Background(), "Bolt", frame.TestFrame())
	assert.ErrorIs(t, err, ErrEmptyVerdict)
}

func openAIEvent(content string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q},"finish_reason":""}]}`, content)
}

func TestOpenAIAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-test", req.Model)
		if !assert.Len(t, req.Messages, 3) {
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, string(req.Messages[2].Content), "data:image/jpeg;base64,")
		assert.Contains(t, string(req.Messages[2].Content), "Crack")

		sseEvents(w, openAIEvent("No "), openAIEvent("Defect"), "[DONE]", openAIEvent(" ignored"))
	}))
	defer server.Close()

	o, err := NewOpenAI(WithBaseURL(server.URL+"/"), WithAPIKey("sk-test"), WithModel("gpt-test"))
	require.NoError(t, err)
	defer o.Close()

	verdict, err := o.Analyze(context.Background(), "Crack", frame.TestFrame())
	require.NoError(t, err)
	assert.Equal(t, "No Defect", verdict)
	assert.Equal(t, OutcomeNoDefect, ParseOutcome(verdict))
}

func TestOpenAIWithoutKeySendsNoAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		sseEvents(w, openAIEvent("Defect Present"), "[DONE]")
	}))
	defer server.Close()

	o, err := NewOpenAI(WithBaseURL(server.URL))
	require.NoError(t, err)

	verdict, err := o.Analyze(context.Background(), "", frame.TestFrame())
	require.NoError(t, err)
	assert.Equal(t, "Defect Present", verdict)
}

func TestOpenAIStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = o.Analyze(context.Background(), "Bolt", frame.TestFrame())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Equal(t, "openai", apiErr.Provider)
}

func TestOpenAIStreamChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseEvents(w, openAIEvent("a"), `{"choices":[]}`, openAIEvent("b"), "[DONE]")
	}))
	defer server.Close()

	o, err := NewOpenAI(WithBaseURL(server.URL))
	require.NoError(t, err)

	stream, err := o.AnalyzeStream(context.Background(), "Bolt", frame.TestFrame())
	require.NoError(t, err)
	defer stream.Close()

	var deltas []string
	for {
		chunk, err := stream.Recv()
		require.NoError(t, err)
		if chunk.Done {
			break
		}
		deltas = append(deltas, chunk.Delta)
	}
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestSSEReaderSkipsNonData(t *testing.T) {
	body := io.NopCloser(strings.NewReader(": keep-alive\nevent: message\n\ndata: one\n\ndata:two\n"))
	r := newSSEReader(body)

	got, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, "one", got)
	got, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, "two", got)
	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMock(t *testing.T) {
	m := NewMock("No Defect")
	verdict, err := m.Analyze(context.Background(), "Bolt", frame.TestFrame())
	require.NoError(t, err)
	assert.Equal(t, "No Defect", verdict)
	assert.Equal(t, 1, m.CallCount())
	assert.Equal(t, []string{"Bolt"}, m.Labels())

	boom := errors.New("boom")
	_, err = WithError(boom).Analyze(context.Background(), "Bolt", nil)
	assert.ErrorIs(t, err, boom)

	fn := Func(func(ctx context.Context, label string, f *frame.Frame) (string, error) {
		return label + "!", nil
	})
	out, err := fn.Analyze(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "x!", out)
}
