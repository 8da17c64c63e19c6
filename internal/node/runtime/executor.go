// Package runtime defines the executor contract and the registry that
// resolves a node type to a runnable executor.
package runtime

import "context"

// StreamMeta tags an invocation with its position in a streaming
// execution tree. Nil when the execution does not stream.
type StreamMeta struct {
	ExecutionID string   `json:"executionId"`
	Depth       int      `json:"depth"`
	Path        []string `json:"path"`
}

// Input is the context handed to every executor: workflow parameters,
// resolved config variables, the current state, prior node outputs
// keyed by node id, and streaming metadata when available. Executors
// must treat all of it as read-only.
type Input struct {
	Parameters map[string]interface{}
	Config     map[string]interface{}
	State      map[string]interface{}
	Parent     map[string]interface{}
	Streaming  *StreamMeta
}

// ChunkFunc delivers one incremental chunk from a streaming executor.
type ChunkFunc func(chunk interface{})

// Executor runs one node. NodeConfig arrives with templates already
// expanded.
type Executor interface {
	Type() string
	ConfigSchema() map[string]interface{}
	Execute(ctx context.Context, nodeConfig map[string]interface{}, input Input) (interface{}, error)
}

// StreamingExecutor is implemented by executors that can deliver
// incremental chunks before their final output.
type StreamingExecutor interface {
	Executor
	ExecuteStream(ctx context.Context, nodeConfig map[string]interface{}, input Input, onChunk ChunkFunc) (interface{}, error)
}
