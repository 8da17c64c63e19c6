package nodes

import (
	"context"
	"time"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// Wait pauses the traversal for a configured duration.
type Wait struct{}

func NewWait() *Wait { return &Wait{} }

func (w *Wait) Type() string { return "wait" }

func (w *Wait) ConfigSchema() map[string]interface{} {
	return schema([]string{"duration"}, map[string]interface{}{
		"duration": prop("string", "Wait duration, e.g. 500ms or a millisecond count"),
	})
}

func (w *Wait) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	duration := optionalDuration(cfg, "duration", 0)
	if duration <= 0 {
		return map[string]interface{}{"waited": "0s"}, nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return map[string]interface{}{"waited": duration.String()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
