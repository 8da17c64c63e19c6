package engine

import (
	"context"
	"time"
)

// EventType enumerates stream event kinds.
type EventType string

const (
	EventWorkflowStart    EventType = "workflow_start"
	EventWorkflowComplete EventType = "workflow_complete"
	EventNodeStart        EventType = "node_start"
	EventNodeChunk        EventType = "node_chunk"
	EventNodeComplete     EventType = "node_complete"
	EventStateUpdated     EventType = "state_updated"
	EventError            EventType = "error"
)

// Event is the envelope for every stream event. Depth and Path locate
// the emitting execution inside a sub-workflow tree.
type Event struct {
	Type              EventType              `json:"type"`
	Timestamp         time.Time              `json:"timestamp"`
	WorkflowID        string                 `json:"workflowId"`
	ExecutionID       string                 `json:"executionId"`
	ParentExecutionID string                 `json:"parentExecutionId,omitempty"`
	Depth             int                    `json:"depth"`
	Path              []string               `json:"path"`
	NodeID            string                 `json:"nodeId,omitempty"`
	NodeType          string                 `json:"nodeType,omitempty"`
	Data              interface{}            `json:"data,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Sink receives stream events in emission order. Send may block for
// back-pressure; it must respect the context.
type Sink interface {
	Send(ctx context.Context, event Event)
}

// ChannelSink delivers events over a buffered channel. Close the sink
// after the engine returns to signal end of stream.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Send(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Close ends the stream. Call only after the engine has returned.
func (s *ChannelSink) Close() { close(s.ch) }

// streamContext threads the sink plus the current position in the
// execution tree through traversal and recursion.
type streamContext struct {
	sink              Sink
	executionID       string
	parentExecutionID string
	workflowID        string
	depth             int
	path              []string
}

// child derives the streaming context a sub-execution inherits through
// the invoking node.
func (s *streamContext) child(subExecutionID, subWorkflowID, nodeID string) *streamContext {
	if s == nil {
		return nil
	}
	path := make([]string, len(s.path), len(s.path)+1)
	copy(path, s.path)
	return &streamContext{
		sink:              s.sink,
		executionID:       subExecutionID,
		parentExecutionID: s.executionID,
		workflowID:        subWorkflowID,
		depth:             s.depth + 1,
		path:              append(path, nodeID),
	}
}

func (s *streamContext) emit(ctx context.Context, event Event) {
	if s == nil || s.sink == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.WorkflowID = s.workflowID
	event.ExecutionID = s.executionID
	event.ParentExecutionID = s.parentExecutionID
	event.Depth = s.depth
	event.Path = s.path
	s.sink.Send(ctx, event)
}
