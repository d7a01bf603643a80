package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/satcat5-go/satcat5/internal/errx"
)

// EmitterConfig holds the static metadata stamped onto every event.
type EmitterConfig struct {
	RunID   string // caller-supplied correlation ID; defaults to a fresh UUID if empty
	StackID string // identifies which stack instance emitted the event; defaults to a fresh UUID if empty
}

// Emitter dispatches typed events to one or more sinks. A nil *Emitter is
// safe to hold; callers guard emission with:
//
//	if emitter != nil {
//	    _ = emitter.Emit(...)
//	}
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter creates an emitter with the given configuration and sinks. An
// empty RunID or StackID is defaulted to a fresh random UUID.
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.StackID == "" {
		cfg.StackID = uuid.NewString()
	}
	return &Emitter{config: cfg, sinks: sinks}
}

// Emit constructs an event with the emitter's static metadata and writes it
// to all registered sinks. Returns the first error encountered; callers
// emitting best-effort telemetry should discard it with _.
func (e *Emitter) Emit(eventType, summary, iface string, tags []string, data interface{}) error {
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp: time.Now().UTC(),
		RunID:     e.config.RunID,
		StackID:   e.config.StackID,
		EventType: eventType,
		Summary:   summary,
		Iface:     iface,
		Tags:      tags,
		Data:      rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks, returning the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
