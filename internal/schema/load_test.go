package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gen-console/internal/errors"
)

func int64p(v int64) *int64 { return &v }

func sampleResponse() TablesResponse {
	return TablesResponse{
		Tables: []SchemaTable{
			{
				Name:    "T1",
				Comment: "users",
				Columns: []SchemaColumn{
					{CamelCaseName: "c1", Name: "c1", Type: "varchar", Length: int64p(64), Chinese: "Column one"},
					{CamelCaseName: "c2", Name: "c2", Type: "bigint", IsNullable: true},
				},
			},
		},
		IgnoreFields: []string{"c2"},
	}
}

func TestLoadSelectionHonoursIgnoreFields(t *testing.T) {
	tree, sel, err := Load(sampleResponse())
	require.NoError(t, err)

	assert.True(t, sel.Has(TableKey("T1")))
	assert.True(t, sel.Has(ColumnKey("T1", "c1")))
	assert.False(t, sel.Has(ColumnKey("T1", "c2")))
	assert.Len(t, sel, 2)
	assert.Equal(t, 1, tree.Len())
}

func TestLoadMapsRows(t *testing.T) {
	tree, _, err := Load(sampleResponse())
	require.NoError(t, err)

	row, i, ok := tree.Lookup("T1")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, "users", row.Comment)
	assert.Equal(t, DefaultFlags(), row.Flags)
	require.Len(t, row.Columns, 2)

	c1, c2 := row.Columns[0], row.Columns[1]
	assert.Equal(t, "c1", c1.Field)
	assert.Equal(t, "Column one", c1.Chinese)
	assert.Equal(t, int64(64), *c1.Length)
	assert.Equal(t, "c2", c2.Chinese, "chinese falls back to the camelCase name")
	assert.True(t, c2.IsNullable)
	assert.Equal(t, "T1-c2", c2.Key().String())
}

func TestLoadRejectsDuplicates(t *testing.T) {
	resp := TablesResponse{Tables: []SchemaTable{{Name: "a"}, {Name: "a"}}}

	_, _, err := Load(resp)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	resp = TablesResponse{Tables: []SchemaTable{{Name: "a", Columns: []SchemaColumn{{Name: "x"}, {Name: "x"}}}}}
	_, _, err = Load(resp)
	assert.Error(t, err)
}

func TestBuildGenRequestProjection(t *testing.T) {
	tree, _, err := Load(sampleResponse())
	require.NoError(t, err)

	req := BuildGenRequest(tree, NewSelection(TableKey("T1"), ColumnKey("T1", "c1")))

	require.Len(t, req.Tables, 1)
	gt := req.Tables[0]
	assert.Equal(t, "T1", gt.ID)
	assert.True(t, gt.IsTable)
	assert.Equal(t, "T1", gt.TableName)
	assert.Equal(t, DefaultFlags(), gt.Flags)
	assert.Equal(t, []GenColumn{{
		Field:   "c1",
		Chinese: "Column one",
		Name:    "c1",
		Type:    "varchar",
		Length:  int64p(64),
	}}, gt.Children)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded struct {
		Tables []map[string]interface{} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	table := decoded.Tables[0]
	assert.Equal(t, true, table["listPage"], "flags are inlined on the table")
	assert.Equal(t, false, table["pageEdit"])

	child := table["children"].([]interface{})[0].(map[string]interface{})
	assert.ElementsMatch(t, []string{"field", "chinese", "name", "type", "length", "isNullable"}, keysOf(child))
}

func TestBuildGenRequestColumnWithoutTable(t *testing.T) {
	tree, _, err := Load(sampleResponse())
	require.NoError(t, err)

	req := BuildGenRequest(tree, NewSelection(ColumnKey("T1", "c1")))
	assert.Empty(t, req.Tables, "a selected column does not pull in its table")
}

func TestBuildGenRequestEmptySelection(t *testing.T) {
	tree, _, err := Load(sampleResponse())
	require.NoError(t, err)

	data, err := json.Marshal(BuildGenRequest(tree, NewSelection()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tables":[]}`, string(data))

	data, err = json.Marshal(BuildGenRequest(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tables":[]}`, string(data))
}

func TestBuildGenRequestUsesEdits(t *testing.T) {
	tree, sel, err := Load(sampleResponse())
	require.NoError(t, err)

	require.NoError(t, tree.SetField(ColumnKey("T1", "c1"), "userName"))
	require.NoError(t, tree.SetChinese(ColumnKey("T1", "c1"), "User name"))
	_, err = tree.Toggle("T1", PageEdit)
	require.NoError(t, err)

	gt := BuildGenRequest(tree, sel).Tables[0]
	assert.Equal(t, "userName", gt.Children[0].Field)
	assert.Equal(t, "User name", gt.Children[0].Chinese)
	assert.True(t, gt.PageEdit)
	assert.False(t, gt.ModalEdit)
}

func keysOf(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
