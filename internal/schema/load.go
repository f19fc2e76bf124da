package schema

import "slices"

// Load maps a fetch response into a fresh tree and its initial selection:
// every table, plus every column whose name is not in IgnoreFields.
func Load(resp TablesResponse) (*Tree, Selection, error) {
	rows := make([]TableRow, 0, len(resp.Tables))
	sel := NewSelection()

	for _, st := range resp.Tables {
		row := TableRow{
			Name:    st.Name,
			Comment: st.Comment,
			Flags:   DefaultFlags(),
			Columns: make([]ColumnRow, 0, len(st.Columns)),
		}
		sel.Add(row.Key())

		for _, sc := range st.Columns {
			chinese := sc.Chinese
			if chinese == "" {
				chinese = sc.CamelCaseName
			}

			col := ColumnRow{
				Table:      st.Name,
				Name:       sc.Name,
				Field:      sc.CamelCaseName,
				Chinese:    chinese,
				Type:       sc.Type,
				Length:     sc.Length,
				IsNullable: sc.IsNullable,
				Comment:    sc.Comment,
			}
			row.Columns = append(row.Columns, col)

			if !slices.Contains(resp.IgnoreFields, sc.Name) {
				sel.Add(col.Key())
			}
		}

		rows = append(rows, row)
	}

	tree, err := NewTree(rows)
	if err != nil {
		return nil, nil, err
	}

	return tree, sel, nil
}

// BuildGenRequest keeps the selected tables and, inside each, the selected
// columns. The result always has non-nil slices so it encodes as [] not null.
func BuildGenRequest(tree *Tree, sel Selection) GenRequest {
	req := GenRequest{Tables: []GenTable{}}

	for _, row := range tree.Rows() {
		if !sel.Has(row.Key()) {
			continue
		}

		gt := GenTable{
			ID:        row.Key().String(),
			IsTable:   true,
			TableName: row.Name,
			Comment:   row.Comment,
			Flags:     row.Flags,
			Children:  []GenColumn{},
		}

		for _, c := range row.Columns {
			if !sel.Has(c.Key()) {
				continue
			}

			gt.Children = append(gt.Children, GenColumn{
				Field:      c.Field,
				Chinese:    c.Chinese,
				Name:       c.Name,
				Type:       c.Type,
				Length:     c.Length,
				IsNullable: c.IsNullable,
			})
		}

		req.Tables = append(req.Tables, gt)
	}

	return req
}
