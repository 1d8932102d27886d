// Package event holds the record types shared between the renderer,
// the dispatcher and the output sinks.
package event

import "time"

// RenderedEvent is one fully rendered synthetic record. It is immutable
// once produced; ownership passes from the renderer to the dispatcher.
type RenderedEvent struct {
	PipelineID string    `json:"pipeline_id"`
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    []byte    `json:"payload"`
}

// String returns the payload as text.
func (e RenderedEvent) String() string { return string(e.Payload) }
