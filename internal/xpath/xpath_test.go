package xpath

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParseAndJoin(t *testing.T) {
	tests := []struct {
		in   string
		segs []Segment
	}{
		{"", nil},
		{"a", []Segment{{Key: "a"}}},
		{"a.b", []Segment{{Key: "a"}, {Key: "b"}}},
		{"orders[3].price", []Segment{{Key: "orders"}, {Index: 3, IsIndex: true}, {Key: "price"}}},
		{"m[0][1]", []Segment{{Key: "m"}, {Index: 0, IsIndex: true}, {Index: 1, IsIndex: true}}},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			segs, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.segs, segs)
			assert.Equal(t, tc.in, Join(segs))
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{".a", "a..b", "a.", "a[x]", "a[1", "a[-1]", "a[0]b"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
		assert.IsType(t, SyntaxError{}, err)
	}
}

func TestGet(t *testing.T) {
	obj := decode(t, `{"orders":[{"price":10},{"price":12}],"name":"x"}`)

	v, ok := Get(obj, "orders[1].price")
	assert.True(t, ok)
	assert.Equal(t, float64(12), v)

	v, ok = Get(obj, "name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	// Absent intermediates resolve to "not found", never an error
	_, ok = Get(obj, "orders[5].price")
	assert.False(t, ok)
	_, ok = Get(obj, "missing.deeper.path")
	assert.False(t, ok)
	_, ok = Get(obj, "name.inner")
	assert.False(t, ok)
}

func TestSet_CreatesIntermediates(t *testing.T) {
	root, err := Set(nil, "a.b[2].c", 5)
	require.NoError(t, err)

	v, ok := Get(root, "a.b[2].c")
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	arr, _ := Get(root, "a.b")
	assert.Len(t, arr, 3)
}

func TestSet_ScalarConflict(t *testing.T) {
	obj := decode(t, `{"a":1}`)
	_, err := Set(obj, "a.b", 2)
	require.Error(t, err)
	assert.IsType(t, PathConflictError{}, err)

	_, err = Set(obj, "a[0]", 2)
	assert.IsType(t, PathConflictError{}, err)
}

func TestWith_LeavesOriginalUntouched(t *testing.T) {
	obj := decode(t, `{"a":{"b":1},"c":{"d":2}}`)
	before := Clone(obj)

	next, err := With(obj, "a.b", 9)
	require.NoError(t, err)

	assert.Equal(t, before, obj)
	v, _ := Get(next, "a.b")
	assert.Equal(t, 9, v)

	// Off-path branches are shared
	origC, _ := Get(obj, "c")
	nextC, _ := Get(next, "c")
	assert.Equal(t, reflect.ValueOf(origC).Pointer(), reflect.ValueOf(nextC).Pointer())
}

func TestAddXPath_RoundTrip(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"a":1,"b":"x","c":true,"d":null}`,
		`{"orders":[{"price":10,"lines":[{"sku":"a"}]},{"price":12}],"tags":["x","y"]}`,
		`[{"a":1},{"b":[{"c":2}]}]`,
	}
	for _, in := range inputs {
		obj := decode(t, in)
		assert.Equal(t, obj, ClearXPath(AddXPath(obj)), in)
	}
}

func TestAddXPath_Idempotent(t *testing.T) {
	obj := decode(t, `{"orders":[{"price":10,"lines":[{"sku":"a"}]},{"price":12}],"meta":{"k":"v"}}`)
	once := AddXPath(obj)
	twice := AddXPath(once)
	assert.Equal(t, once, twice)
}

func TestAddXPath_Stamps(t *testing.T) {
	obj := AddXPath(decode(t, `{"meta":{"k":"v"},"orders":[{"price":10}]}`))

	meta, _ := Get(obj, "meta")
	logical, data, ok := XPathOf(meta)
	require.True(t, ok)
	assert.Equal(t, "meta", logical)
	assert.Equal(t, "meta", data)

	order, _ := Get(obj, "orders[0]")
	m := order.(map[string]any)
	assert.Equal(t, "orders[0]", m[KeyXPath])
	assert.Equal(t, "orders[0]", m[KeyDataXPath])

	// Annotations do not affect equality
	assert.True(t, Equal(obj, ClearXPath(obj)))
}

func TestAnnotate_WithBase(t *testing.T) {
	obj := Annotate(decode(t, `{"items":[{"a":1}]}`), "child", "parent.child")
	item, _ := Get(obj, "items[0]")
	logical, data, ok := XPathOf(item)
	require.True(t, ok)
	assert.Equal(t, "child.items[0]", logical)
	assert.Equal(t, "parent.child.items[0]", data)
}

func TestRemoveAt_RenumbersSiblings(t *testing.T) {
	obj := AddXPath(decode(t, `{"rows":[{"v":0},{"v":1},{"v":2}]}`))

	next, err := RemoveAt(obj, "rows", 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		el, ok := Get(next, Index("rows", i))
		require.True(t, ok)
		logical, data, _ := XPathOf(el)
		assert.Equal(t, Index("rows", i), logical)
		assert.Equal(t, Index("rows", i), data)
	}
	v, _ := Get(next, "rows[0].v")
	assert.Equal(t, float64(1), v)

	// Original is untouched
	rows, _ := Get(obj, "rows")
	assert.Len(t, rows, 3)
}

func TestInsertAt_RenumbersSiblings(t *testing.T) {
	obj := AddXPath(decode(t, `{"rows":[{"v":0},{"v":1}]}`))

	next, err := InsertAt(obj, "rows", 1, map[string]any{"v": float64(9)})
	require.NoError(t, err)

	for i, want := range []float64{0, 9, 1} {
		el, _ := Get(next, Index("rows", i))
		logical, _, ok := XPathOf(el)
		require.True(t, ok)
		assert.Equal(t, Index("rows", i), logical)
		assert.Equal(t, want, el.(map[string]any)["v"])
	}

	_, err = InsertAt(obj, "rows", 5, nil)
	assert.IsType(t, IndexOutOfRangeError{}, err)
}

func TestAppend_CreatesArray(t *testing.T) {
	obj := decode(t, `{}`)
	next, err := Append(obj, "rows", "x")
	require.NoError(t, err)
	v, ok := Get(next, "rows[0]")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestDelete(t *testing.T) {
	obj := decode(t, `{"a":{"b":1,"c":2},"arr":[1,2,3]}`)

	next, err := Delete(obj, "a.b")
	require.NoError(t, err)
	_, ok := Get(next, "a.b")
	assert.False(t, ok)
	_, ok = Get(obj, "a.b")
	assert.True(t, ok)

	next, err = Delete(obj, "arr[1]")
	require.NoError(t, err)
	arr, _ := Get(next, "arr")
	assert.Equal(t, []any{float64(1), float64(3)}, arr)
}

func TestEqual_NumbersAcrossTypes(t *testing.T) {
	assert.True(t, Equal(float64(1), 1))
	assert.True(t, Equal(map[string]any{"a": 1}, map[string]any{"a": float64(1)}))
	assert.False(t, Equal(map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}))
	assert.False(t, Equal([]any{1}, []any{1, 2}))
	assert.False(t, Equal("1", 1))
	assert.True(t, Equal(nil, nil))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "a.b", Child("a", "b"))
	assert.Equal(t, "b", Child("", "b"))
	assert.Equal(t, "a[3]", Index("a", 3))
	assert.Equal(t, "orders[].price", StripIndices("orders[12].price"))
	assert.True(t, HasPrefix("a.b[1].c", "a.b"))
	assert.True(t, HasPrefix("a.b[1].c", "a.b[1]"))
	assert.False(t, HasPrefix("a.bc", "a.b"))

	parent, last, err := Split("a.b[2]")
	require.NoError(t, err)
	assert.Equal(t, "a.b", parent)
	assert.Equal(t, Segment{Index: 2, IsIndex: true}, last)
}
