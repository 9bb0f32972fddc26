package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/flowmesh/schemaui/internal/xpath"
)

// Export writes rows as CSV, one column per field in the given order.
// Object and array values are written as JSON text.
func Export(w io.Writer, rows []Row, columns []Column) error {
	cw := csv.NewWriter(w)

	header := lo.Map(columns, func(c Column, _ int) string { return c.Title })
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			cell, err := formatCell(r[c.Key])
			if err != nil {
				return fmt.Errorf("failed to format %s of %s: %w", c.Key, rowLabel(r), err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", rowLabel(r), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case map[string]any, []any:
		data, err := json.Marshal(xpath.ClearXPath(t))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return fmt.Sprint(v), nil
}
