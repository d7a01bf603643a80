package telemetry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/satcat5-go/satcat5/internal/errx"
)

// JSONLSink writes structured events as JSON-L to a file. It is safe for
// concurrent use.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLSink creates a sink that appends to path, creating the file if it
// does not exist. The parent directory must already exist.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	return &JSONLSink{file: f, enc: json.NewEncoder(f)}, nil
}

func (w *JSONLSink) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (w *JSONLSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.file.Sync()
	if err := w.file.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}

var _ Sink = (*JSONLSink)(nil)
