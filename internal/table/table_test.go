package table

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/test"
	"github.com/flowmesh/schemaui/internal/xpath"
)

func orderColumns(t *testing.T) []Column {
	t.Helper()
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)
	node, err := doc.ResolveModel("Order")
	require.NoError(t, err)
	return Columns(doc, node)
}

func TestColumns_SchemaOrderAndFlattening(t *testing.T) {
	cols := orderColumns(t)

	var keys []string
	for _, c := range cols {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{
		"_id", "name", "price", "side", "active", "notes",
		"limits.max_qty", "limits.min_qty", "lines", "tags", "internal_code",
	}, keys)

	assert.Equal(t, "Order Limits.max_qty", cols[6].Title)
	assert.Equal(t, schema.KindArray, cols[8].Kind)
	assert.True(t, cols[10].Hide)
	assert.Equal(t, 1, cols[0].Sequence)
}

func TestColumns_SelfReferenceTerminates(t *testing.T) {
	doc, err := schema.Parse(test.SampleSchema)
	require.NoError(t, err)
	node, err := doc.ResolveModel("Category")
	require.NoError(t, err)

	var keys []string
	for _, c := range Columns(doc, node) {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"name", "children"}, keys)
}

func TestProjectRows(t *testing.T) {
	data := xpath.AddXPath(test.Decode(t, `{"orders": [
		{"name": "a", "price": 1, "limits": {"max_qty": 3}, "lines": [{"sku": "x"}]},
		{"name": "b", "price": 2}
	]}`))
	cols := orderColumns(t)

	rows := ProjectRows(data, cols, "orders")
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].DataID())
	assert.Equal(t, 1, rows[1].DataID())
	assert.Equal(t, "orders[1]", rows[1][xpath.KeyXPath])
	assert.Equal(t, "a", rows[0]["name"])
	assert.Equal(t, float64(3), rows[0]["limits.max_qty"])
	assert.NotContains(t, rows[1], "limits.max_qty")

	// nested values are references into the data, not copies
	lines, _ := xpath.Get(data, "orders[0].lines")
	assert.Equal(t, lines, rows[0]["lines"])
	rows[0]["lines"].([]any)[0].(map[string]any)["sku"] = "changed"
	sku, _ := xpath.Get(data, "orders[0].lines[0].sku")
	assert.Equal(t, "changed", sku)
}

func TestProjectRows_ObjectAndMissing(t *testing.T) {
	data := test.Decode(t, `{"limits": {"max_qty": 1}, "tags": ["a", "b"]}`)
	cols := []Column{{Key: "max_qty", XPath: "max_qty"}}

	rows := ProjectRows(data, cols, "limits")
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), rows[0]["max_qty"])

	scalars := ProjectRows(data, nil, "tags")
	require.Len(t, scalars, 2)
	assert.Equal(t, "b", scalars[1]["value"])

	assert.Nil(t, ProjectRows(data, cols, "missing"))
}

func TestCommonKeys(t *testing.T) {
	cols := []Column{{Key: "a"}, {Key: "b"}}
	rows := []Row{{"a": float64(1), "b": float64(2)}, {"a": float64(1), "b": float64(3)}}

	common := CommonKeys(rows, cols, false)
	require.Len(t, common, 1)
	assert.Equal(t, "a", common[0].Column.Key)
	assert.Equal(t, float64(1), common[0].Value)

	visible := Visible(cols, common)
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].Key)
}

func TestCommonKeys_EdgeCases(t *testing.T) {
	cols := []Column{{Key: "a"}, {Key: "gone"}, {Key: "h", Hide: true}, {Key: "partial"}}
	rows := []Row{
		{"a": float64(1), "h": "x", "partial": "p"},
		{"a": float64(1), "h": "x"},
	}

	common := CommonKeys(rows, cols, true)
	var keys []string
	for _, c := range common {
		keys = append(keys, c.Column.Key)
	}
	assert.Equal(t, []string{"a", "gone"}, keys, "absent everywhere is common, hidden skipped, partial is not")

	assert.Nil(t, CommonKeys(rows[:1], cols, false), "a single row has no common keys")
}

func TestSort_MultiLevelStable(t *testing.T) {
	rows := []Row{
		{DataIDKey: 0, "side": "SELL", "price": float64(2)},
		{DataIDKey: 1, "side": "BUY", "price": float64(2)},
		{DataIDKey: 2, "side": "BUY", "price": float64(1)},
		{DataIDKey: 3, "side": "SELL", "price": float64(2)},
		{DataIDKey: 4, "side": "BUY"},
	}

	sorted := Sort(rows, []SortKey{{Field: "side", Direction: Asc}, {Field: "price", Direction: Desc}})

	var ids []int
	for _, r := range sorted {
		ids = append(ids, r.DataID())
	}
	assert.Equal(t, []int{1, 2, 4, 0, 3}, ids)
	assert.Equal(t, 0, rows[0].DataID(), "input order untouched")
}

func TestSort_NoKeys(t *testing.T) {
	rows := []Row{{DataIDKey: 1}, {DataIDKey: 0}}
	sorted := Sort(rows, nil)
	assert.Equal(t, rows, sorted)
}

func TestPaginate(t *testing.T) {
	rows := make([]Row, 30)
	for i := range rows {
		rows[i] = Row{DataIDKey: i}
	}

	page := Paginate(rows, 25, 1)
	require.Len(t, page, 5)
	assert.Equal(t, 25, page[0].DataID())
	assert.Equal(t, 29, page[4].DataID())

	assert.Len(t, Paginate(rows, 25, 0), 25)
	assert.Empty(t, Paginate(rows, 25, 2))
	assert.Len(t, Paginate(rows, 0, 3), 30)
	assert.Equal(t, 2, PageCount(30, 25))
	assert.Equal(t, 1, PageCount(0, 25))
}

func TestReorder(t *testing.T) {
	cols := []Column{{Key: "a", Sequence: 1}, {Key: "b", Sequence: 2}, {Key: "c", Sequence: 3}}

	out := Reorder(cols, []string{"c", "a"})
	var keys []string
	for _, c := range out {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"c", "a", "b"}, keys)
	assert.Equal(t, 1, out[0].Sequence)
	assert.Equal(t, 3, out[2].Sequence)
	assert.Equal(t, "a", cols[0].Key, "input untouched")
	assert.Equal(t, 1, cols[0].Sequence)
}

func TestFilter(t *testing.T) {
	rows := []Row{
		{"side": "BUY", "price": float64(10)},
		{"side": "SELL", "price": float64(20)},
		{"side": "BUY", "price": float64(30)},
	}

	out, err := Filter(rows, `side == "BUY" && price > 15`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(30), out[0]["price"])

	out, err = Filter(rows, "")
	require.NoError(t, err)
	assert.Len(t, out, 3)

	_, err = Filter(rows, "price >")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	cols := []Column{
		{Key: "name", Title: "Name"},
		{Key: "price", Title: "Price"},
		{Key: "lines", Title: "Lines"},
	}
	rows := []Row{
		{"name": "a", "price": float64(10), "lines": xpath.AddXPath([]any{map[string]any{"sku": "x"}})},
		{"name": "b,c"},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, rows, cols))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Price", "Lines"},
		{"a", "10", `[{"sku":"x"}]`},
		{"b,c", "", ""},
	}, records)
}
