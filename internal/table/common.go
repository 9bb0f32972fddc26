package table

import "github.com/flowmesh/schemaui/internal/xpath"

// CommonKey is a column whose value is identical across all rows
type CommonKey struct {
	Column Column `json:"column"`
	Value  any    `json:"value"`
}

// CommonKeys returns the columns whose value is identical in every row,
// including columns absent from every row. There are none unless there is
// more than one row. With hide set, hidden columns are not considered.
func CommonKeys(rows []Row, columns []Column, hide bool) []CommonKey {
	if len(rows) <= 1 {
		return nil
	}

	var out []CommonKey
	for _, c := range columns {
		if hide && c.Hide {
			continue
		}
		first, firstOK := rows[0][c.Key]
		same := true
		for _, r := range rows[1:] {
			v, ok := r[c.Key]
			if ok != firstOK || !xpath.Equal(first, v) {
				same = false
				break
			}
		}
		if same {
			out = append(out, CommonKey{Column: c, Value: first})
		}
	}
	return out
}
