// Package nodes holds the built-in node executors.
package nodes

import (
	"fmt"
	"time"
)

func stringConfig(cfg map[string]interface{}, key string) (string, error) {
	raw, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("missing required config field '%s'", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("config field '%s' must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(cfg map[string]interface{}, key, fallback string) string {
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func optionalInt(cfg map[string]interface{}, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func optionalBool(cfg map[string]interface{}, key string, fallback bool) bool {
	if b, ok := cfg[key].(bool); ok {
		return b
	}
	return fallback
}

func optionalDuration(cfg map[string]interface{}, key string, fallback time.Duration) time.Duration {
	switch v := cfg[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return fallback
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	default:
		return fallback
	}
}

func schema(required []string, properties map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}
