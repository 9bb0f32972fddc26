package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/flowmesh/schemaui/internal/prefs"
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/store"
	"github.com/flowmesh/schemaui/internal/table"
	"github.com/flowmesh/schemaui/internal/tree"
)

// TableResponse represents one page of a table view
type TableResponse struct {
	Model     string            `json:"model"`
	XPath     string            `json:"xpath,omitempty"`
	Columns   []table.Column    `json:"columns"`
	Common    []table.CommonKey `json:"common,omitempty"`
	Rows      []table.Row       `json:"rows"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
	PageCount int               `json:"page_count"`
	Sort      []table.SortKey   `json:"sort,omitempty"`
	Filter    string            `json:"filter,omitempty"`
}

// tableQuery is a table request with preferences applied
type tableQuery struct {
	xpath      string
	page       int
	pageSize   int
	sort       []table.SortKey
	filter     string
	hideCommon bool
	order      []string
}

// Table handles GET /api/v1/models/{model}/table. Without an xpath the
// loaded collection is projected; with one, the array or object at that
// location of the selected object.
func (h *ModelHandlers) Table(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	q, err := h.tableQuery(sl.Model(), r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	columns, rows, err := h.project(sl, q)
	if err != nil {
		writeError(w, err)
		return
	}

	var common []table.CommonKey
	if q.hideCommon {
		common = table.CommonKeys(rows, columns, true)
	}
	rows = table.Sort(rows, q.sort)

	writeJSON(w, http.StatusOK, TableResponse{
		Model:     sl.Model(),
		XPath:     q.xpath,
		Columns:   table.Visible(table.Reorder(columns, q.order), common),
		Common:    common,
		Rows:      table.Paginate(rows, q.pageSize, q.page),
		Total:     len(rows),
		Page:      q.page,
		PageSize:  q.pageSize,
		PageCount: table.PageCount(len(rows), q.pageSize),
		Sort:      q.sort,
		Filter:    q.filter,
	})
}

// Export handles GET /api/v1/models/{model}/table/export. Every matching
// row is written, common columns included.
func (h *ModelHandlers) Export(w http.ResponseWriter, r *http.Request) {
	sl, ok := h.slice(w, r)
	if !ok {
		return
	}

	q, err := h.tableQuery(sl.Model(), r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	columns, rows, err := h.project(sl, q)
	if err != nil {
		writeError(w, err)
		return
	}
	rows = table.Sort(rows, q.sort)
	columns = table.Visible(table.Reorder(columns, q.order), nil)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sl.Model()+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := table.Export(w, rows, columns); err != nil {
		h.log.Error().Err(err).Str("model", sl.Model()).Msg("Failed to export table")
	}
}

// project returns the columns and the filtered rows of the table source
func (h *ModelHandlers) project(sl *store.Slice, q tableQuery) ([]table.Column, []table.Row, error) {
	doc, err := h.registry.Current()
	if err != nil {
		return nil, nil, err
	}
	model, err := doc.ResolveModel(sl.Model())
	if err != nil {
		return nil, nil, err
	}

	st := sl.Snapshot()
	var (
		data  any
		node  = model
		title = sl.Model()
	)
	if q.xpath == "" {
		data = st.Items
	} else {
		fd, err := tree.FieldAt(doc, sl.Model(), q.xpath)
		if err != nil {
			return nil, nil, err
		}
		data = st.Modified
		node = fd.Node
		title = fd.Title()
		if fd.Kind == schema.KindArray {
			node = fd.ItemNode
		}
	}

	var columns []table.Column
	if node != nil {
		columns = table.Columns(doc, node)
	}
	if len(columns) == 0 {
		// arrays of scalars project to a single value column
		kind := schema.KindString
		if node != nil {
			kind = node.Kind
		}
		columns = []table.Column{{Key: "value", Title: title, Kind: kind, Sequence: 1}}
	}

	rows, err := table.Filter(table.ProjectRows(data, columns, q.xpath), q.filter)
	if err != nil {
		return nil, nil, err
	}
	return columns, rows, nil
}

// tableQuery merges the URL query over the model's saved preferences
func (h *ModelHandlers) tableQuery(model string, v url.Values) (tableQuery, error) {
	p := h.preferences(model)
	q := tableQuery{
		xpath:      v.Get("xpath"),
		pageSize:   p.PageSize,
		sort:       p.Sort,
		filter:     p.Filter,
		hideCommon: p.HideCommon,
		order:      p.ColumnOrder,
	}

	if s := v.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 0 {
			return q, fmt.Errorf("invalid page: %q", s)
		}
		q.page = page
	}
	if s := v.Get("page_size"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size <= 0 {
			return q, fmt.Errorf("invalid page_size: %q", s)
		}
		q.pageSize = size
	}
	if v.Has("sort") {
		keys, err := ParseSort(v.Get("sort"))
		if err != nil {
			return q, err
		}
		q.sort = keys
	}
	if v.Has("filter") {
		q.filter = v.Get("filter")
	}
	if s := v.Get("hide_common"); s != "" {
		hide, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("invalid hide_common: %q", s)
		}
		q.hideCommon = hide
	}
	if s := v.Get("columns"); s != "" {
		q.order = strings.Split(s, ",")
	}
	return q, nil
}

// ParseSort parses "field[:asc|:desc],..." into sort keys. A leading '-'
// is shorthand for descending.
func ParseSort(s string) ([]table.SortKey, error) {
	parts := lo.Filter(strings.Split(s, ","), func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})

	keys := make([]table.SortKey, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		key := table.SortKey{Field: part, Direction: table.Asc}
		if strings.HasPrefix(part, "-") {
			key = table.SortKey{Field: part[1:], Direction: table.Desc}
		} else if field, dir, ok := strings.Cut(part, ":"); ok {
			key = table.SortKey{Field: field, Direction: table.Direction(strings.ToLower(dir))}
		}
		if err := (prefs.Preferences{PageSize: 1, Sort: []table.SortKey{key}}).Validate(); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
