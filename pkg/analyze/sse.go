package analyze

import (
	"bufio"
	"io"
	"strings"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// sseReader yields the data payloads of a server-sent event stream.
type sseReader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

func newSSEReader(body io.ReadCloser) *sseReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{scanner: scanner, body: body}
}

// next returns the next data payload, or io.EOF at the end of the stream.
// Comments, event names and blank keep-alive lines are skipped.
func (r *sseReader) next() (string, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *sseReader) close() error {
	return r.body.Close()
}
