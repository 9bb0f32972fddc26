package table

import (
	"fmt"
	"sort"
	"strings"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey is one level of a multi-level sort
type SortKey struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Sort returns rows ordered by keys, first key most significant. Ties keep
// the original row order. The input slice is not modified.
func Sort(rows []Row, keys []SortKey) []Row {
	out := append([]Row(nil), rows...)
	if len(keys) == 0 {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			c := compareValues(out[i][k.Field], out[j][k.Field])
			if c == 0 {
				continue
			}
			if k.Direction == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// compareValues orders nulls first, then booleans, numbers and strings.
// Values of different kinds order by kind.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ta := a.(type) {
	case nil:
		return 0
	case bool:
		tb := b.(bool)
		switch {
		case ta == tb:
			return 0
		case !ta:
			return -1
		}
		return 1
	case float64:
		tb := b.(float64)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	case string:
		return strings.Compare(ta, b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
