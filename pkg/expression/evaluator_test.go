package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() map[string]interface{} {
	return map[string]interface{}{
		"parameters": map[string]interface{}{
			"name":  "world",
			"count": float64(3),
			"items": []interface{}{"a", "b", "c"},
		},
		"config": map[string]interface{}{
			"apiUrl": "https://api.example.com",
		},
		"state": map[string]interface{}{
			"counter": float64(5),
			"flag":    true,
		},
		"parent": map[string]interface{}{
			"fetch": map[string]interface{}{
				"status": float64(200),
				"body":   map[string]interface{}{"id": "abc-123"},
			},
		},
	}
}

func TestEvaluator_FullExpression(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name     string
		template string
		want     interface{}
	}{
		{"string lookup", "{{parameters.name}}", "world"},
		{"number keeps type", "{{state.counter}}", float64(5)},
		{"bool keeps type", "{{state.flag}}", true},
		{"arithmetic", "{{state.counter + 1}}", float64(6)},
		{"comparison", "{{parent.fetch.status == 200}}", true},
		{"array keeps type", "{{parameters.items}}", []interface{}{"a", "b", "c"}},
		{"nested map", "{{parent.fetch.body}}", map[string]interface{}{"id": "abc-123"}},
		{"whitespace padding", "  {{ parameters.name }}  ", "world"},
		{"undefined yields nil", "{{parameters.missing}}", nil},
		{"undefined chain yields nil", "{{parent.nope.deeper.still}}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Parse(tt.template, testContext())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Interpolation(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"single embed", "hello {{parameters.name}}!", "hello world!"},
		{"multiple embeds", "{{parameters.name}}-{{state.counter}}", "world-5"},
		{"whole float prints as int", "count={{parameters.count}}", "count=3"},
		{"url building", "{{config.apiUrl}}/items/{{parent.fetch.body.id}}", "https://api.example.com/items/abc-123"},
		{"undefined keeps literal", "value: {{parameters.missing}}", "value: {{parameters.missing}}"},
		{"bool renders", "flag={{state.flag}}", "flag=true"},
		{"array renders as json", "items={{parameters.items}}", `items=["a","b","c"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Parse(tt.template, testContext())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_StructuralExpansion(t *testing.T) {
	e := NewEvaluator()

	tmpl := map[string]interface{}{
		"url":    "{{config.apiUrl}}/v1",
		"status": "{{parent.fetch.status}}",
		"static": float64(42),
		"nested": map[string]interface{}{
			"id": "{{parent.fetch.body.id}}",
		},
		"list": []interface{}{"{{parameters.name}}", "literal", float64(1)},
	}

	got, err := e.Parse(tmpl, testContext())
	require.NoError(t, err)

	want := map[string]interface{}{
		"url":    "https://api.example.com/v1",
		"status": float64(200),
		"static": float64(42),
		"nested": map[string]interface{}{
			"id": "abc-123",
		},
		"list": []interface{}{"world", "literal", float64(1)},
	}
	assert.Equal(t, want, got)
}

func TestEvaluator_CompileErrorSurfaces(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Parse("{{1 +* 2}}", testContext())
	require.Error(t, err)

	var exprErr *Error
	assert.ErrorAs(t, err, &exprErr)
	assert.Equal(t, "1 +* 2", exprErr.Expr)
}

func TestEvaluator_Builtins(t *testing.T) {
	e := NewEvaluator()
	ctx := testContext()

	t.Run("getPath", func(t *testing.T) {
		got, err := e.Eval(`getPath(parent, "fetch.body.id")`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", got)
	})

	t.Run("getPath with index", func(t *testing.T) {
		got, err := e.Eval(`getPath(parameters, "items[1]")`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", got)
	})

	t.Run("getPath missing segment", func(t *testing.T) {
		got, err := e.Eval(`getPath(parent, "fetch.nope.deeper")`, ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("eval", func(t *testing.T) {
		got, err := e.Eval(`eval("state.counter * 2")`, ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(10), got)
	})

	t.Run("parse", func(t *testing.T) {
		got, err := e.Eval(`parse("hello {{parameters.name}}")`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "hello world", got)
	})
}

func TestGetPath(t *testing.T) {
	obj := map[string]interface{}{
		"a": map[string]interface{}{
			"b": []interface{}{
				map[string]interface{}{"c": "deep"},
			},
		},
	}

	assert.Equal(t, "deep", GetPath(obj, "a.b[0].c"))
	assert.Equal(t, "deep", GetPath(obj, `a["b"][0].c`))
	assert.Nil(t, GetPath(obj, "a.b[5].c"))
	assert.Nil(t, GetPath(obj, "a.x.y"))
	assert.Nil(t, GetPath(nil, "a"))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(float64(0)))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy(float64(0.5)))
	assert.True(t, Truthy(map[string]interface{}{}))
	assert.True(t, Truthy([]interface{}{}))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "7", Stringify(float64(7)))
	assert.Equal(t, "7.5", Stringify(float64(7.5)))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]interface{}{"k": "v"}))
}
