package table

import (
	"strconv"

	"github.com/flowmesh/schemaui/internal/filter"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// DataIDKey is the synthetic row key holding the element position
const DataIDKey = "data-id"

// Row is a flat projection of one array element. Column values that are
// objects or arrays are the element's own values, not copies.
type Row map[string]any

// DataID returns the row's element position
func (r Row) DataID() int {
	id, _ := r[DataIDKey].(int)
	return id
}

// ProjectRows projects the array at xp inside data into rows. An object at xp
// projects to a single row. Every row carries DataIDKey and the element's
// xpath under xpath.KeyXPath.
func ProjectRows(data any, columns []Column, xp string) []Row {
	target, ok := xpath.Get(data, xp)
	if !ok {
		return nil
	}

	switch t := target.(type) {
	case []any:
		rows := make([]Row, 0, len(t))
		for i, elem := range t {
			rows = append(rows, project(elem, columns, i, xpath.Index(xp, i)))
		}
		return rows
	case map[string]any:
		return []Row{project(t, columns, 0, xp)}
	}
	return nil
}

func project(elem any, columns []Column, id int, elemXPath string) Row {
	row := Row{DataIDKey: id, xpath.KeyXPath: elemXPath}
	if _, isObj := elem.(map[string]any); !isObj {
		// arrays of scalars project to a single value column
		row["value"] = elem
		return row
	}
	for _, c := range columns {
		if v, ok := xpath.Get(elem, c.XPath); ok {
			row[c.Key] = v
		}
	}
	return row
}

// Filter keeps the rows matching expr. An empty expression keeps all rows.
func Filter(rows []Row, expr string) ([]Row, error) {
	parsed, err := filter.Parse(expr)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return rows, nil
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		ok, err := filter.Match(parsed, filter.Context(r))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Paginate returns page pageIndex (zero based) of rows. A non-positive page
// size returns every row; pages past the end are empty.
func Paginate(rows []Row, pageSize, pageIndex int) []Row {
	if pageSize <= 0 {
		return rows
	}
	start := pageSize * pageIndex
	if pageIndex < 0 || start >= len(rows) {
		return []Row{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// PageCount returns the number of pages needed for n rows
func PageCount(n, pageSize int) int {
	if pageSize <= 0 || n == 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// rowLabel is used in export error messages
func rowLabel(r Row) string {
	return "row " + strconv.Itoa(r.DataID())
}
