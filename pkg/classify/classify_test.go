package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-inspect/pkg/frame"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"minor crack", "Crack"},
		{"SEVERE dent", "Dent"},
		{"object bolt", "Bolt"},
		{"bolt", "Bolt"},
		{"  spaced   out\n", "Out"},
		{"Loading model from: m.pt\nPrediction: scratch", "Scratch"},
		{"major DENT", "DENT"},
		{"rust éclat", "Éclat"},
		{"part 42", "42"},
		{"object \xffbolt", "\xffbolt"},
		{"object \xc3", "\xc3"},
		{"mark \uFFFDx", "\uFFFDx"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrEmptyLabel)
	}
}

func TestHTTPClassifier(t *testing.T) {
	f := frame.TestFrame()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ClassifyPath {
			t.Errorf("Expected %s, got %s", ClassifyPath, r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Base64Image != f.Base64() {
			t.Error("Expected frame bytes as base64Image")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"classification": "Prediction: crack"})
	}))
	defer server.Close()

	c := NewHTTP(server.URL+"/", server.Client())
	label, err := c.Classify(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "Prediction: crack", label)
}

func TestHTTPClassifierError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "Python script error"})
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, server.Client()).Classify(context.Background(), frame.TestFrame())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "Python script error", httpErr.Message)
	assert.True(t, httpErr.IsServerError())
}

func TestHTTPClassifierEmptyLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"classification": "  "})
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, server.Client()).Classify(context.Background(), frame.TestFrame())
	assert.ErrorIs(t, err, ErrEmptyLabel)
}

func TestHTTPClassifierNilFrame(t *testing.T) {
	_, err := NewHTTP("http://127.0.0.1:1", nil).Classify(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classify.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCommandClassifier(t *testing.T) {
	script := writeScript(t, `echo "Loading model from: model.pt"
test -s "$1" || exit 3
echo "Prediction: crack"
`)
	tmpDir := t.TempDir()
	fs := afero.NewOsFs()

	c := NewCommand("sh", []string{script}, WithFs(fs), WithTempDir(tmpDir))
	out, err := c.Classify(context.Background(), frame.TestFrame())
	require.NoError(t, err)

	label, err := Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, "Crack", label)

	left, err := afero.ReadDir(fs, tmpDir)
	require.NoError(t, err)
	assert.Empty(t, left, "temp frame should be removed")
}

func TestCommandClassifierFailure(t *testing.T) {
	script := writeScript(t, `echo "Error: model missing" >&2
exit 1
`)
	tmpDir := t.TempDir()

	c := NewCommand("sh", []string{script}, WithTempDir(tmpDir))
	_, err := c.Classify(context.Background(), frame.TestFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model missing")

	left, _ := os.ReadDir(tmpDir)
	assert.Empty(t, left, "temp frame should be removed on failure")
}

func TestCommandClassifierEmptyOutput(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	c := NewCommand("sh", []string{script}, WithTempDir(t.TempDir()))
	_, err := c.Classify(context.Background(), frame.TestFrame())
	assert.ErrorIs(t, err, ErrEmptyLabel)
}

func TestFuncAndMock(t *testing.T) {
	var c Classifier = Func(func(ctx context.Context, f *frame.Frame) (string, error) {
		return "widget", nil
	})
	label, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "widget", label)

	m := NewMock("object bolt")
	label, err = m.Classify(context.Background(), frame.TestFrame())
	require.NoError(t, err)
	assert.Equal(t, "object bolt", label)
	assert.Equal(t, 1, m.CallCount())

	boom := errors.New("boom")
	_, err = WithError(boom).Classify(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
