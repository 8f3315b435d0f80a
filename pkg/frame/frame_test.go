package frame

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameReadsDimensions(t *testing.T) {
	src := TestFrame()

	f, err := NewFrame(src.JPEG, time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, 16, f.Width)
	assert.Equal(t, 16, f.Height)
	assert.Equal(t, time.Unix(100, 0), f.CapturedAt)
	assert.NotEmpty(t, f.Base64())

	img, err := f.Image()
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestNewFrameRejectsGarbage(t *testing.T) {
	_, err := NewFrame(nil, time.Now())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = NewFrame([]byte("not a jpeg"), time.Now())
	assert.Error(t, err)
}

func TestDirSourceCyclesFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	jpeg := TestFrame().JPEG
	require.NoError(t, afero.WriteFile(fs, "/frames/b.jpg", jpeg, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/frames/a.JPEG", jpeg, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/frames/notes.txt", []byte("skip"), 0o644))

	src := NewDirSource(fs, "/frames")
	ctx := context.Background()

	_, err := src.Capture(ctx)
	assert.ErrorIs(t, err, ErrClosed, "capture before open")

	require.NoError(t, src.Open(ctx))
	assert.Equal(t, []string{"/frames/a.JPEG", "/frames/b.jpg"}, src.files)

	for i := 0; i < 3; i++ {
		f, err := src.Capture(ctx)
		require.NoError(t, err)
		assert.Equal(t, 16, f.Width)
	}
	assert.Equal(t, 1, src.next, "index wraps around")

	require.NoError(t, src.Close())
	_, err = src.Capture(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDirSourceEmptyDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	err := NewDirSource(fs, "/empty").Open(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	jpeg := TestFrame().JPEG
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL+"/snapshot.jpg", server.Client())
	ctx := context.Background()

	_, err := src.Capture(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, src.Open(ctx))
	f, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, jpeg, f.JPEG)
	assert.Equal(t, 2, hits, "open probes once, capture fetches once")
	require.NoError(t, src.Close())
}

func TestHTTPSourceStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewHTTPSource(server.URL, server.Client()).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCommandSource(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	path := filepath.Join(t.TempDir(), "still.jpg")
	require.NoError(t, os.WriteFile(path, TestFrame().JPEG, 0o644))

	src := NewCommandSource("cat", path)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	f, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Height)

	failing := NewCommandSource("cat", filepath.Join(t.TempDir(), "missing.jpg"))
	require.NoError(t, failing.Open(ctx))
	_, err = failing.Capture(ctx)
	assert.Error(t, err)
}

func TestCommandSourceMissingTool(t *testing.T) {
	err := NewCommandSource("definitely-not-a-capture-tool").Open(context.Background())
	assert.Error(t, err)
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	require.NoError(t, m.Open(ctx))
	assert.True(t, m.IsOpen())
	_, err := m.Capture(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.False(t, m.IsOpen())
	assert.Equal(t, 1, m.CallCount("Open"))
	assert.Equal(t, 1, m.CallCount("Capture"))
	assert.Equal(t, 1, m.CallCount("Close"))
}
