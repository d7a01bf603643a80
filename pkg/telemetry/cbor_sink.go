package telemetry

import (
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/satcat5-go/satcat5/internal/errx"
)

// CBORSink writes each event as a length-undelimited CBOR data item to w.
// It is the wire-format side of the "CBOR telemetry" collaborator: the
// core only ever hands finished Event values to the Sink interface, never
// touches the codec itself.
type CBORSink struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *cbor.Encoder
}

// NewCBORSink wraps w, encoding one CBOR item per Write call.
func NewCBORSink(w io.WriteCloser) *CBORSink {
	return &CBORSink{w: w, enc: cbor.NewEncoder(w)}
}

func (s *CBORSink) Write(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *CBORSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}

var _ Sink = (*CBORSink)(nil)
