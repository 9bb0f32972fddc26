package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/test"
)

func TestGenerateDefault_ScalarsAndEmptyArray(t *testing.T) {
	doc, err := schema.Parse([]byte(`{
		"type": "object",
		"properties": {
			"x": {"type": "number"},
			"y": {"type": "array", "items": {"type": "string"}}
		}
	}`))
	require.NoError(t, err)

	got := GenerateDefault(doc, doc.Root)
	assert.Equal(t, map[string]any{"x": float64(0), "y": []any{}}, got)
}

func TestForModel_Order(t *testing.T) {
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)

	got, err := ForModel(doc, "Order")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"name":          "",
		"price":         float64(0),
		"side":          "BUY",
		"active":        true,
		"notes":         "",
		"limits":        map[string]any{"max_qty": float64(0), "min_qty": float64(0)},
		"lines":         []any{},
		"tags":          []any{},
		"internal_code": "",
	}, got)
	assert.NotContains(t, got, "_id", "server populated fields are left to the backend")
}

func TestForModel_MinItems(t *testing.T) {
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)

	got, err := ForModel(doc, "OrderLine")
	require.NoError(t, err)

	fill := map[string]any{"px": float64(0), "venue": "NYSE"}
	assert.Equal(t, []any{fill, fill}, got["fills"])

	// elements are independent copies
	got["fills"].([]any)[0].(map[string]any)["px"] = float64(5)
	assert.Equal(t, float64(0), got["fills"].([]any)[1].(map[string]any)["px"])
}

func TestForModel_SelfReferenceTerminates(t *testing.T) {
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)

	got, err := ForModel(doc, "Category")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "", "parent": nil, "children": []any{}}, got)
}

func TestGenerateDefault_RecursiveMinItems(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"$defs": {"Node": {"type": "object", "properties": {
		"kids": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/Node"}}
	}}}}`))
	require.NoError(t, err)

	got, err := ForModel(doc, "Node")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"kids": []any{}}, got)
}

func TestForModel_Unknown(t *testing.T) {
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)

	_, err = ForModel(doc, "Missing")
	assert.IsType(t, schema.NotFoundError{}, err)
}

func TestGenerateDefault_DeclaredDefaults(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"type": "object", "properties": {
		"qty": {"type": "number", "default": 7},
		"mode": {"type": "string", "enum": ["A", "B"], "default": "B"},
		"list": {"type": "array", "items": {"type": "number"}, "default": [1, 2]}
	}}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"qty":  float64(7),
		"mode": "B",
		"list": []any{float64(1), float64(2)},
	}, GenerateDefault(doc, doc.Root))
}
