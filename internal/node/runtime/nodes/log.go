package nodes

import (
	"context"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

// Log writes a message to the service log and passes its config
// through, so it can sit on any edge without changing data flow.
type Log struct {
	log logger.Logger
}

func NewLog(log logger.Logger) *Log { return &Log{log: log} }

func (l *Log) Type() string { return "log" }

func (l *Log) ConfigSchema() map[string]interface{} {
	return schema(nil, map[string]interface{}{
		"message": prop("string", "Message to log"),
		"level":   prop("string", "debug, info, warn or error"),
	})
}

func (l *Log) Execute(_ context.Context, cfg map[string]interface{}, input runtime.Input) (interface{}, error) {
	message := optionalString(cfg, "message", "log node")
	kv := []interface{}{"state", input.State}

	switch optionalString(cfg, "level", "info") {
	case "debug":
		l.log.Debug(message, kv...)
	case "warn":
		l.log.Warn(message, kv...)
	case "error":
		l.log.Error(message, kv...)
	default:
		l.log.Info(message, kv...)
	}
	return cfg, nil
}

// Noop does nothing and returns an empty mapping. Useful as a junction
// node in branching graphs.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Type() string { return "noop" }

func (n *Noop) ConfigSchema() map[string]interface{} { return schema(nil, map[string]interface{}{}) }

func (n *Noop) Execute(context.Context, map[string]interface{}, runtime.Input) (interface{}, error) {
	return map[string]interface{}{}, nil
}
