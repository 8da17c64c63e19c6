package nodes

import (
	"context"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// Transform returns its expanded config as output. Because templates
// are expanded before dispatch, this is the general-purpose data
// shaping node.
type Transform struct{}

func NewTransform() *Transform { return &Transform{} }

func (t *Transform) Type() string { return "transform" }

func (t *Transform) ConfigSchema() map[string]interface{} {
	return schema(nil, map[string]interface{}{})
}

func (t *Transform) Execute(_ context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	return cfg, nil
}
